package postgres

import (
	"fmt"
	"net/url"
	"strings"
)

// 允许的 sslmode 取值（libpq）
var sslModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

// validateDSN 只接受 URI 形式的 DSN，且必须指定数据库名。
// 未指定数据库时 pgx 会回落到与用户名同名的库，迁移会建到错误的库里
func validateDSN(dsn string) error {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return fmt.Errorf("empty postgres dsn")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid postgres dsn: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
	default:
		return fmt.Errorf("postgres dsn must be URI with scheme postgres:// or postgresql:// (got %q)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("postgres dsn missing host")
	}
	if db := strings.Trim(u.Path, "/"); db == "" || strings.Contains(db, "/") {
		return fmt.Errorf("postgres dsn must name exactly one database (got path %q)", u.Path)
	}
	if mode := u.Query().Get("sslmode"); mode != "" && !sslModes[mode] {
		return fmt.Errorf("postgres dsn has unknown sslmode %q", mode)
	}
	return nil
}
