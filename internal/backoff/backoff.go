package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy 重试退避策略
//
// Delay(seed, attempt) = min(Initial * Factor^(attempt-1) * (1 + j), Max)，
// 其中 j ∈ [-JitterRatio, +JitterRatio] 由 (seed, attempt) 确定性生成：
// 相同的作业在相同的重试次数下总是得到相同的延迟。
type Policy struct {
	Initial     time.Duration // 首次重试延迟，默认 5 秒
	Factor      float64       // 退避因子，默认 2.0
	Max         time.Duration // 最大延迟，默认 10 分钟
	JitterRatio float64       // 抖动比例，默认 0.2（±20%）
}

// DefaultPolicy 返回默认退避策略
func DefaultPolicy() Policy {
	return Policy{
		Initial:     5 * time.Second,
		Factor:      2.0,
		Max:         10 * time.Minute,
		JitterRatio: 0.2,
	}
}

// Normalize 将非法参数替换为默认值
func (p Policy) Normalize() Policy {
	def := DefaultPolicy()
	if p.Initial <= 0 {
		p.Initial = def.Initial
	}
	if p.Factor < 1 {
		p.Factor = def.Factor
	}
	if p.Max <= 0 {
		p.Max = def.Max
	}
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	if p.JitterRatio < 0 {
		p.JitterRatio = 0
	}
	if p.JitterRatio > 1 {
		p.JitterRatio = 1
	}
	return p
}

// Base 返回不含抖动的延迟
func (p Policy) Base(attempt int) time.Duration {
	p = p.Normalize()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.Initial) * math.Pow(p.Factor, float64(attempt-1))
	if d > float64(p.Max) || math.IsInf(d, 0) || math.IsNaN(d) {
		return p.Max
	}
	return time.Duration(d)
}

// Delay 返回第 attempt 次重试（从 1 开始）前的等待时间
func (p Policy) Delay(seed int64, attempt int) time.Duration {
	p = p.Normalize()
	base := float64(p.Base(attempt))
	if p.JitterRatio == 0 {
		return time.Duration(base)
	}

	// 以 (seed, attempt) 作为 PCG 种子，保证结果可复现
	r := rand.New(rand.NewPCG(uint64(seed), uint64(attempt))) //nolint:gosec // 抖动无需密码学随机
	j := (r.Float64()*2 - 1) * p.JitterRatio

	d := base * (1 + j)
	if d < 0 {
		d = 0
	}
	if d > float64(p.Max) {
		d = float64(p.Max)
	}
	return time.Duration(d)
}

// Bounds 返回第 attempt 次重试延迟的上下界
func (p Policy) Bounds(attempt int) (lo, hi time.Duration) {
	p = p.Normalize()
	base := float64(p.Base(attempt))
	lo = time.Duration(base * (1 - p.JitterRatio))
	hi = time.Duration(base * (1 + p.JitterRatio))
	if hi > p.Max {
		hi = p.Max
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}
