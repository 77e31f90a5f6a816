// internal/services/generation_service.go
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Corphon/CineWeaverMCP/internal/config"
	apperrors "github.com/Corphon/CineWeaverMCP/internal/errors"
	"github.com/Corphon/CineWeaverMCP/internal/llm"
	"github.com/Corphon/CineWeaverMCP/internal/models"
	"github.com/Corphon/CineWeaverMCP/internal/parser"
	"github.com/Corphon/CineWeaverMCP/internal/utils"
)

// 生成模式
const (
	ModeMultiStep  = "multi_step"
	ModeSingleCall = "single_call"
)

// 类型检测固定使用低温度
const genreTemperature = 0.2

var whitespaceRe = regexp.MustCompile(`\s+`)

// GenerationService 剧本生成编排服务
type GenerationService struct {
	provider llm.Provider
	config   *config.Config
	progress *ProgressService
	logger   *utils.Logger
	metrics  *utils.MetricsCollector
}

// NewGenerationService 创建生成服务
func NewGenerationService(provider llm.Provider, cfg *config.Config, progress *ProgressService) *GenerationService {
	return &GenerationService{
		provider: provider,
		config:   cfg,
		progress: progress,
		logger:   utils.GetLogger(),
		metrics:  utils.GetMetrics(),
	}
}

// ValidateStoryInput 校验并规范化故事前提
//
// 以非空白字符数为准判断最小长度，返回规范化后的文本。
func ValidateStoryInput(story string, minChars int) (string, error) {
	cleaned := strings.TrimSpace(parser.NormalizeNewlines(story))
	compact := strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))
	if compact == "" {
		return "", apperrors.NewValidationError("Story idea cannot be empty.", nil)
	}

	nonWS := len([]rune(whitespaceRe.ReplaceAllString(cleaned, "")))
	if nonWS < minChars {
		return "", apperrors.NewPremiseTooShort(minChars)
	}
	return cleaned, nil
}

// clampTemperature 将温度限制在[0, 2]
func clampTemperature(value float64) float64 {
	if value <= 0 {
		return 0
	}
	if value > 2 {
		return 2
	}
	return value
}

// Generate 执行完整生成管线
//
// 校验失败时不发起任何模型调用；多步模式下类型检测仅作参考，
// 失败降级为空分析并记录警告，剧本/角色/声音任一失败则整体失败。
func (s *GenerationService) Generate(ctx context.Context, request models.GenerationRequest) (*models.GenerationResult, error) {
	start := time.Now()
	singleCall := request.SingleCall || s.config.AISingleCall

	result, err := s.generate(ctx, request, singleCall)
	s.metrics.RecordGeneration(singleCall, time.Since(start), err != nil)
	return result, err
}

func (s *GenerationService) generate(ctx context.Context, request models.GenerationRequest, singleCall bool) (*models.GenerationResult, error) {
	minChars := request.MinStoryChars
	if minChars <= 0 {
		minChars = s.config.MinStoryChars
	}

	story, err := ValidateStoryInput(request.Story, minChars)
	if err != nil {
		return nil, err
	}

	// 仅在字段缺省时使用默认温度，显式的 0 有效
	temperature := config.DefaultTemperature
	if request.Temperature != nil {
		temperature = clampTemperature(*request.Temperature)
	}

	taskID := strings.TrimSpace(request.TaskID)
	if taskID == "" {
		taskID = uuid.NewString()
	}

	tracker := s.tracker(taskID)

	mode := ModeMultiStep
	if singleCall {
		mode = ModeSingleCall
	}

	result := &models.GenerationResult{
		GenreAnalysis: models.GenreAnalysis{},
		Meta: models.GenerationMeta{
			Model:         s.provider.GetDefaultModel(),
			Provider:      s.provider.GetName(),
			Mode:          mode,
			Temperature:   temperature,
			MinStoryChars: minChars,
			TaskID:        taskID,
		},
	}

	if singleCall {
		err = s.runSingleCall(ctx, story, request.Language, temperature, result, tracker)
	} else {
		err = s.runMultiStep(ctx, story, request.Language, temperature, result, tracker)
	}
	if err != nil {
		if tracker != nil {
			tracker.Fail(err.Error())
		}
		return nil, err
	}

	result.OK = len(result.Errors) == 0
	if tracker != nil {
		tracker.Complete("generation finished")
	}
	return result, nil
}

// tracker 获取或创建任务的进度跟踪器，进度服务缺省时返回nil
func (s *GenerationService) tracker(taskID string) *ProgressTracker {
	if s.progress == nil {
		return nil
	}
	return s.progress.CreateTracker(taskID)
}

func progressStep(tracker *ProgressTracker, step, message string, percent int) {
	if tracker != nil {
		tracker.UpdateProgress(step, message, percent)
	}
}

// runMultiStep 四步管线：分析 → 剧本 → (角色 ∥ 声音)
func (s *GenerationService) runMultiStep(ctx context.Context, story, language string, temperature float64, result *models.GenerationResult, tracker *ProgressTracker) error {
	// 第一步：类型/基调/背景，低温度，失败仅降级
	progressStep(tracker, "analysis", "Detecting genre, tone and setting", 10)
	analysis, warning := s.detectGenre(ctx, story)
	result.GenreAnalysis = analysis
	if warning != "" {
		result.Errors = append(result.Errors, warning)
		s.logger.Warn("genre detection degraded: %s", warning)
	}

	// 第二步：剧本，失败则整体失败
	progressStep(tracker, "screenplay", "Writing the screenplay", 35)
	screenplay, err := s.completeText(ctx, buildScreenplayPrompt(story, analysis, language), temperature)
	if err != nil {
		return err
	}
	result.Screenplay = parser.StripCodeFences(screenplay)

	// 第三、四步只依赖剧本前的输入，可并发执行
	progressStep(tracker, "characters", "Building character profiles and sound design", 65)

	var charactersRaw, soundRaw string
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		text, err := s.completeText(groupCtx, buildCharacterPrompt(story, analysis, language), temperature)
		if err != nil {
			return err
		}
		charactersRaw = parser.StripCodeFences(text)
		return nil
	})
	group.Go(func() error {
		text, err := s.completeText(groupCtx, buildSoundDesignPrompt(story, analysis, language), temperature)
		if err != nil {
			return err
		}
		soundRaw = parser.StripCodeFences(text)
		return nil
	})
	if err := group.Wait(); err != nil {
		return err
	}

	progressStep(tracker, "assembly", "Assembling results", 90)
	result.Characters = parser.SplitCharacterBlocks(charactersRaw)
	result.SoundDesign = parser.SplitSoundScenes(soundRaw)
	return nil
}

// detectGenre 类型检测，任何失败都返回空分析和警告文本
func (s *GenerationService) detectGenre(ctx context.Context, story string) (models.GenreAnalysis, string) {
	raw, err := s.completeText(ctx, buildGenrePrompt(story), genreTemperature)
	if err != nil {
		return models.GenreAnalysis{}, fmt.Sprintf("Genre detection failed: %v", err)
	}

	analysis, err := parser.ParseGenreAnalysis(raw)
	if err != nil {
		return models.GenreAnalysis{}, fmt.Sprintf("Genre detection failed: %v", err)
	}
	if analysis.Genre == "" || analysis.Tone == "" || analysis.Setting == "" {
		return models.GenreAnalysis{}, "Genre detection returned incomplete JSON (need genre, tone, setting)."
	}
	return *analysis, ""
}

// runSingleCall 单次调用模式：一次请求产出全部分节
func (s *GenerationService) runSingleCall(ctx context.Context, story, language string, temperature float64, result *models.GenerationResult, tracker *ProgressTracker) error {
	progressStep(tracker, "single_call", "Generating all outputs in one request", 20)

	raw, err := s.completeText(ctx, buildSingleCallPrompt(story, language), temperature)
	if err != nil {
		return err
	}

	progressStep(tracker, "assembly", "Splitting sections", 80)
	parsed := parser.ParseSingleCallOutput(parser.StripCodeFences(raw))

	result.GenreAnalysis = models.GenreAnalysis{
		Genre:   parsed.Genre,
		Tone:    parsed.Tone,
		Setting: parsed.Setting,
	}
	result.Screenplay = parsed.Screenplay
	result.Characters = parser.SplitCharacterBlocks(parsed.Characters)
	result.SoundDesign = parser.SplitSoundScenes(parsed.SoundDesign)
	result.Errors = append(result.Errors, parsed.Errors...)
	return nil
}

// completeText 发起一次模型调用并记录指标
func (s *GenerationService) completeText(ctx context.Context, prompt string, temperature float64) (string, error) {
	response, err := s.provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   s.config.AIMaxOutputTokens,
	})
	s.metrics.RecordProviderCall(err != nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(response.Text) == "" {
		return "", apperrors.NewProviderProtocolError("Empty response from the model.", nil)
	}
	return response.Text, nil
}
