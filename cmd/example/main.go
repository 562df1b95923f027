package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/azhengyongqin/caseflow/sdk"
)

// 演示程序：通过 HTTP API 驱动病例走完“最终回复 -> 👍 -> 清理”流程。
// 需要一个运行中的 `caseflow server --with-worker`（或 server + worker）。
func main() {
	if err := loadEnvFile(); err != nil {
		log.Printf("警告: 无法加载 .env 文件: %v（将使用环境变量或默认值）", err)
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:28080"
	}
	room1 := os.Getenv("ROOM1_ID")
	if room1 == "" {
		room1 = "room1"
	}

	client := sdk.NewClient(baseURL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// 生成测试数据模式
	if len(os.Args) > 1 && os.Args[1] == "generate-test-data" {
		n := 20
		if len(os.Args) > 2 {
			if v, err := strconv.Atoi(os.Args[2]); err == nil && v > 0 {
				n = v
			}
		}
		generateTestData(ctx, client, n)
		return
	}

	if err := runCase(ctx, client, room1); err != nil {
		log.Fatalf("演示流程失败: %v", err)
	}
}

// finalScenarios 三种最终决定及对应作业
var finalScenarios = []struct {
	status  string
	jobType string
	payload any
}{
	{"FAILED", "post_room1_final_failure", map[string]any{"reason": "影像解析失败"}},
	{"DOCTOR_DENIED", "post_room1_final_denied", map[string]any{"reason": "无需进一步检查"}},
	{"APPT_CONFIRMED", "post_room1_final_accepted", map[string]any{
		"appointment_at": time.Now().Add(48 * time.Hour).Format("2006-01-02 15:04"),
		"location":       "门诊楼 3 层影像科",
	}},
}

// runCase 单个病例走完整流程
func runCase(ctx context.Context, client *sdk.Client, room1 string) error {
	sc := finalScenarios[rand.Intn(len(finalScenarios))]

	c, err := client.CreateCase(ctx, sdk.CreateCaseRequest{
		Status:    sc.status,
		OriginRef: "$demo-" + uuid.NewString()[:8],
	})
	if err != nil {
		return fmt.Errorf("创建病例: %w", err)
	}
	log.Printf("已创建病例: case_id=%s, status=%s", c.CaseID, c.Status)

	payload, _ := json.Marshal(sc.payload)
	res, err := client.EnqueueJob(ctx, sdk.EnqueueJobRequest{
		JobType: sc.jobType,
		CaseID:  &c.CaseID,
		Payload: payload,
		Unique:  true,
	})
	if err != nil {
		return fmt.Errorf("入队 %s: %w", sc.jobType, err)
	}
	if !res.Enqueued {
		return errors.New("作业未入队：已有活跃作业")
	}
	log.Printf("已入队: job_id=%d, job_type=%s", res.Job.ID, res.Job.JobType)

	c, err = waitCase(ctx, client, c.CaseID, "WAIT_R1_CLEANUP_THUMBS")
	if err != nil {
		return err
	}
	log.Printf("最终回复已发布: final_reply_ref=%s", c.FinalReplyRef)

	// 两个人同时点赞，只有一个会触发清理
	for _, actor := range []string{"@alice", "@bob"} {
		r, err := client.SendSignal(ctx, sdk.SignalRequest{
			Room:      room1,
			TargetRef: c.FinalReplyRef,
			Key:       "👍",
			Actor:     actor,
		})
		if err != nil {
			return fmt.Errorf("提交信号: %w", err)
		}
		log.Printf("信号结果: actor=%s, processed=%v, reason=%s", actor, r.Processed, r.Reason)
	}

	c, err = waitCase(ctx, client, c.CaseID, "CLEANED")
	if err != nil {
		return err
	}
	log.Printf("清理完成: case_id=%s, triggered_by=%s", c.CaseID, c.CleanupTriggeredBy)
	return nil
}

// waitCase 轮询直到病例到达目标状态
func waitCase(ctx context.Context, client *sdk.Client, caseID uuid.UUID, want string) (*sdk.Case, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		c, err := client.GetCase(ctx, caseID)
		if err != nil {
			return nil, err
		}
		if c.Status == want {
			return c, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("等待病例 %s 进入 %s 超时，当前 %s", caseID, want, c.Status)
		case <-ticker.C:
		}
	}
}

// generateTestData 批量生成病例与作业，用于观察队列指标
func generateTestData(ctx context.Context, client *sdk.Client, n int) {
	log.Println("=== 开始生成测试数据 ===")

	enqueued := 0
	for i := 0; i < n; i++ {
		sc := finalScenarios[i%len(finalScenarios)]
		c, err := client.CreateCase(ctx, sdk.CreateCaseRequest{
			Status:    sc.status,
			OriginRef: fmt.Sprintf("$test-%d", i),
		})
		if err != nil {
			log.Printf("创建病例失败: %v", err)
			continue
		}

		payload, _ := json.Marshal(sc.payload)
		res, err := client.EnqueueJob(ctx, sdk.EnqueueJobRequest{
			JobType:      sc.jobType,
			CaseID:       &c.CaseID,
			Payload:      payload,
			DelaySeconds: rand.Intn(30),
			Unique:       true,
		})
		if err != nil {
			log.Printf("入队失败: case_id=%s, err=%v", c.CaseID, err)
			continue
		}
		if res.Enqueued {
			enqueued++
		}
	}

	stats, err := client.JobStats(ctx)
	if err != nil {
		log.Printf("查询作业统计失败: %v", err)
		return
	}
	log.Printf("=== 测试数据生成完成: 入队 %d 个作业，队列统计 %v ===", enqueued, stats.Counts)
}

// loadEnvFile 尝试从项目根目录加载 .env 文件
func loadEnvFile() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	possiblePaths := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}

	for _, path := range possiblePaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err != nil {
			continue
		}
		if err := godotenv.Load(absPath); err != nil {
			return err
		}
		log.Printf("已加载环境变量文件: %s", absPath)
		return nil
	}
	return nil
}
