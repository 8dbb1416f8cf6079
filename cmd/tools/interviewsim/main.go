package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/interview-pilot/backend/internal/config"
	"github.com/zhouzirui/interview-pilot/backend/internal/model/persona"
	speechmodel "github.com/zhouzirui/interview-pilot/backend/internal/model/speech"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/ai"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/interview"
	"github.com/zhouzirui/interview-pilot/backend/internal/service/speech"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	personaID := flag.String("persona", "backend-engineer", "面试官预设 ID")
	minutes := flag.Int("minutes", 15, "面试时长（分钟）")
	language := flag.String("lang", "", "回答语言，默认使用面试官预设的语言")
	timeout := flag.Duration("timeout", 2*time.Minute, "单次回答的超时时间")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] answer1.wav answer2.txt ...\n", filepath.Base(os.Args[0]))
		fmt.Fprintln(flag.CommandLine.Output(), ".txt 文件的内容直接作为转写结果，其余文件交给语音识别服务。")
		flag.PrintDefaults()
	}
	flag.Parse()

	answers := flag.Args()
	if len(answers) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	personas := persona.NewMemoryStore(persona.Seed())
	if cfg.Interview.PersonasFile != "" {
		items, err := persona.LoadFile(cfg.Interview.PersonasFile)
		if err != nil {
			log.Fatalf("加载面试官预设失败: %v", err)
		}
		personas = persona.NewMemoryStore(items)
	}
	pers, ok := personas.FindByID(*personaID)
	if !ok {
		log.Fatalf("找不到面试官预设 %q", *personaID)
	}

	ctx := context.Background()
	engine := interview.NewEngine(newGenerator(ctx, cfg), newTranscriber(cfg), interview.Config{
		MaxDurationMinutes: cfg.Interview.MaxDurationMinutes,
		Policy: interview.Policy{
			WrapUpThreshold: cfg.Interview.WrapUpThreshold,
			MaxTopicDwell:   cfg.Interview.MaxTopicDwell,
			HistoryWindow:   cfg.Interview.HistoryWindow,
		},
		Concurrency: cfg.Interview.CapabilityConcurrency,
	})
	defer engine.Close()

	snap, err := engine.CreateSession(ctx, pers, *minutes)
	if err != nil {
		log.Fatalf("创建会话失败: %v", err)
	}
	printJSON("session", snap)

	for i, path := range answers {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("读取回答 %s 失败: %v", path, err)
		}

		turnCtx, cancel := context.WithTimeout(ctx, *timeout)
		result, err := engine.SubmitAnswer(turnCtx, snap.SessionID, interview.Audio{
			Data:     data,
			Format:   strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			Language: *language,
		})
		cancel()
		if err != nil {
			log.Fatalf("第 %d 个回答处理失败: %v", i+1, err)
		}
		printJSON(fmt.Sprintf("turn %d", result.TurnIndex), result)

		if result.Finished {
			log.Printf("面试时间已用完，忽略剩余 %d 个回答", len(answers)-i-1)
			break
		}
	}

	report, err := engine.Report(ctx, snap.SessionID)
	if err != nil {
		log.Fatalf("生成报告失败: %v", err)
	}
	printJSON("summary", report.Summary)
	printJSON("stats", engine.Stats())
}

func newGenerator(ctx context.Context, cfg *config.Config) interview.TextGenerator {
	if !cfg.AI.Enabled() {
		log.Println("[WARN] 大模型未配置，使用默认题目与评分")
		return ai.Disabled{}
	}
	gen, err := ai.NewGenerator(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("初始化大模型失败: %v", err)
	}
	return gen
}

func newTranscriber(cfg *config.Config) interview.Transcriber {
	var audio interview.Transcriber = speech.Disabled{}
	if cfg.Speech.Enabled {
		svc, err := speech.NewService(cfg.Speech.ToModel())
		if err != nil {
			log.Fatalf("初始化语音服务失败: %v", err)
		}
		audio = svc
	}
	return textOrAudio{audio: audio}
}

// textOrAudio 把 .txt 回答直接当作转写结果，方便在没有语音服务时演练
type textOrAudio struct {
	audio interview.Transcriber
}

func (t textOrAudio) TranscribeBuffer(ctx context.Context, sessionID string, data []byte, format, language string) (*speechmodel.ASRResponse, error) {
	if format == "txt" {
		return &speechmodel.ASRResponse{
			SessionID:  sessionID,
			Text:       strings.TrimSpace(string(data)),
			Confidence: 1,
			CreatedAt:  time.Now(),
		}, nil
	}
	return t.audio.TranscribeBuffer(ctx, sessionID, data, format, language)
}

func printJSON(label string, v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("encode %s: %v", label, err)
		return
	}
	fmt.Printf("== %s ==\n%s\n", label, out)
}
