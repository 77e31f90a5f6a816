// internal/services/generation_service_test.go
package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/Corphon/CineWeaverMCP/internal/config"
	apperrors "github.com/Corphon/CineWeaverMCP/internal/errors"
	"github.com/Corphon/CineWeaverMCP/internal/llm"
	"github.com/Corphon/CineWeaverMCP/internal/models"
)

// fakeProvider routes canned responses by prompt content and records calls
type fakeProvider struct {
	mu           sync.Mutex
	calls        int
	temperatures []float64

	genreResponse      string
	screenplayResponse string
	characterResponse  string
	soundResponse      string
	singleCallResponse string

	genreErr      error
	screenplayErr error
	characterErr  error
	soundErr      error
}

func (f *fakeProvider) Initialize(map[string]string) error { return nil }
func (f *fakeProvider) GetName() string                    { return "fake" }
func (f *fakeProvider) GetDefaultModel() string            { return "fake-model" }

func (f *fakeProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.calls++
	f.temperatures = append(f.temperatures, req.Temperature)
	f.mu.Unlock()

	var text string
	var err error
	switch {
	case strings.Contains(req.Prompt, "film development analyst"):
		text, err = f.genreResponse, f.genreErr
	case strings.Contains(req.Prompt, "film development team"):
		text = f.singleCallResponse
	case strings.Contains(req.Prompt, "professional screenwriter"):
		text, err = f.screenplayResponse, f.screenplayErr
	case strings.Contains(req.Prompt, "character development specialist"):
		text, err = f.characterResponse, f.characterErr
	case strings.Contains(req.Prompt, "sound designer"):
		text, err = f.soundResponse, f.soundErr
	default:
		text = "unexpected prompt"
	}
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Text: text, ModelName: "fake-model", ProviderName: "fake"}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func validStory() string {
	// 120 non-whitespace characters
	return strings.Repeat("ab", 60)
}

func temp(v float64) *float64 {
	return &v
}

func happyProvider() *fakeProvider {
	return &fakeProvider{
		genreResponse:      `{"genre": "Thriller", "tone": "Tense", "setting": "Night market"}`,
		screenplayResponse: "INT. NIGHT MARKET - NIGHT\n\nThe stalls glow.",
		characterResponse:  "Name: Ira\nAge: 29\n---\nName: Bo\nAge: 52",
		soundResponse:      "SCENE 1: Market\nMUSIC GENRE: Percussion\nSCENE 2: Alley\nMUSIC GENRE: Drone",
	}
}

func testConfig() *config.Config {
	return &config.Config{
		MinStoryChars:     config.DefaultMinStoryChars,
		AIMaxOutputTokens: config.DefaultMaxOutputTokens,
	}
}

func TestGenerate_PremiseTooShortMakesNoProviderCalls(t *testing.T) {
	provider := happyProvider()
	service := NewGenerationService(provider, testConfig(), nil)

	_, err := service.Generate(context.Background(), models.GenerationRequest{
		Story: strings.Repeat("x", 119),
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !apperrors.IsPremiseTooShort(err) {
		t.Fatalf("expected premise_too_short, got %v", err)
	}
	if provider.callCount() != 0 {
		t.Fatalf("expected zero provider calls, got %d", provider.callCount())
	}
}

func TestGenerate_WhitespaceDoesNotCountTowardMinimum(t *testing.T) {
	provider := happyProvider()
	service := NewGenerationService(provider, testConfig(), nil)

	// 119 non-whitespace characters padded with whitespace
	story := strings.Repeat("x ", 119) + "\n\t  "
	_, err := service.Generate(context.Background(), models.GenerationRequest{Story: story})
	if !apperrors.IsPremiseTooShort(err) {
		t.Fatalf("expected premise_too_short, got %v", err)
	}
}

func TestGenerate_MultiStepHappyPath(t *testing.T) {
	provider := happyProvider()
	service := NewGenerationService(provider, testConfig(), nil)

	result, err := service.Generate(context.Background(), models.GenerationRequest{Story: validStory()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.OK {
		t.Fatalf("expected ok result, errors: %v", result.Errors)
	}
	if provider.callCount() != 4 {
		t.Fatalf("expected 4 provider calls, got %d", provider.callCount())
	}
	if result.GenreAnalysis.Genre != "Thriller" {
		t.Fatalf("unexpected analysis: %+v", result.GenreAnalysis)
	}
	if !strings.Contains(result.Screenplay, "NIGHT MARKET") {
		t.Fatalf("unexpected screenplay: %q", result.Screenplay)
	}
	if len(result.Characters) != 2 || result.Characters[0].Name != "Ira" {
		t.Fatalf("unexpected characters: %+v", result.Characters)
	}
	if len(result.SoundDesign) != 2 {
		t.Fatalf("unexpected sound design: %+v", result.SoundDesign)
	}
	if result.Meta.Mode != ModeMultiStep || result.Meta.Model != "fake-model" {
		t.Fatalf("unexpected meta: %+v", result.Meta)
	}
	if result.Meta.TaskID == "" {
		t.Fatalf("expected generated task id")
	}
}

func TestGenerate_GenreStepUsesLowTemperature(t *testing.T) {
	provider := happyProvider()
	service := NewGenerationService(provider, testConfig(), nil)

	_, err := service.Generate(context.Background(), models.GenerationRequest{
		Story:       validStory(),
		Temperature: temp(0.9),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	provider.mu.Lock()
	defer provider.mu.Unlock()
	if provider.temperatures[0] != genreTemperature {
		t.Fatalf("genre call temperature = %v, want %v", provider.temperatures[0], genreTemperature)
	}
	for _, temp := range provider.temperatures[1:] {
		if temp != 0.9 {
			t.Fatalf("generation temperature = %v, want 0.9", temp)
		}
	}
}

func TestGenerate_TemperatureClampedToTwo(t *testing.T) {
	provider := happyProvider()
	service := NewGenerationService(provider, testConfig(), nil)

	result, err := service.Generate(context.Background(), models.GenerationRequest{
		Story:       validStory(),
		Temperature: temp(7.5),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Meta.Temperature != 2 {
		t.Fatalf("meta temperature = %v, want 2", result.Meta.Temperature)
	}
}

func TestGenerate_OmittedTemperatureUsesDefault(t *testing.T) {
	provider := happyProvider()
	service := NewGenerationService(provider, testConfig(), nil)

	result, err := service.Generate(context.Background(), models.GenerationRequest{Story: validStory()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Meta.Temperature != config.DefaultTemperature {
		t.Fatalf("meta temperature = %v, want %v", result.Meta.Temperature, config.DefaultTemperature)
	}
}

func TestGenerate_ExplicitZeroTemperatureHonored(t *testing.T) {
	provider := happyProvider()
	service := NewGenerationService(provider, testConfig(), nil)

	result, err := service.Generate(context.Background(), models.GenerationRequest{
		Story:       validStory(),
		Temperature: temp(0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Meta.Temperature != 0 {
		t.Fatalf("explicit zero rewritten to %v", result.Meta.Temperature)
	}

	provider.mu.Lock()
	defer provider.mu.Unlock()
	// genre step keeps its pinned temperature, every other call runs at 0
	for i, got := range provider.temperatures {
		want := 0.0
		if i == 0 {
			want = genreTemperature
		}
		if got != want {
			t.Fatalf("call %d temperature = %v, want %v", i, got, want)
		}
	}
}

func TestGenerate_NegativeTemperatureClampsToZero(t *testing.T) {
	provider := happyProvider()
	service := NewGenerationService(provider, testConfig(), nil)

	result, err := service.Generate(context.Background(), models.GenerationRequest{
		Story:       validStory(),
		Temperature: temp(-1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Meta.Temperature != 0 {
		t.Fatalf("meta temperature = %v, want 0", result.Meta.Temperature)
	}
}

func TestGenerate_GenreProviderFailureDegrades(t *testing.T) {
	provider := happyProvider()
	provider.genreErr = apperrors.NewProviderUnreachable("model server down", nil)
	service := NewGenerationService(provider, testConfig(), nil)

	result, err := service.Generate(context.Background(), models.GenerationRequest{Story: validStory()})
	if err != nil {
		t.Fatalf("analysis failure must not fail the request: %v", err)
	}
	if !result.GenreAnalysis.IsEmpty() {
		t.Fatalf("expected empty analysis, got %+v", result.GenreAnalysis)
	}
	if result.OK {
		t.Fatalf("result must carry the degradation warning")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "Genre detection failed") {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.Screenplay == "" {
		t.Fatalf("generation must continue after analysis failure")
	}
}

func TestGenerate_GenreParseFailureDegrades(t *testing.T) {
	provider := happyProvider()
	provider.genreResponse = "this is not json at all"
	service := NewGenerationService(provider, testConfig(), nil)

	result, err := service.Generate(context.Background(), models.GenerationRequest{Story: validStory()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.GenreAnalysis.IsEmpty() || len(result.Errors) != 1 {
		t.Fatalf("expected degraded analysis with one warning, got %+v / %v",
			result.GenreAnalysis, result.Errors)
	}
}

func TestGenerate_IncompleteGenreJSONDegrades(t *testing.T) {
	provider := happyProvider()
	provider.genreResponse = `{"genre": "Thriller"}`
	service := NewGenerationService(provider, testConfig(), nil)

	result, err := service.Generate(context.Background(), models.GenerationRequest{Story: validStory()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.GenreAnalysis.IsEmpty() {
		t.Fatalf("partial analysis must be discarded, got %+v", result.GenreAnalysis)
	}
}

func TestGenerate_ScreenplayFailureAbortsRequest(t *testing.T) {
	provider := happyProvider()
	provider.screenplayErr = apperrors.NewProviderTimeout("timed out", nil)
	service := NewGenerationService(provider, testConfig(), nil)

	_, err := service.Generate(context.Background(), models.GenerationRequest{Story: validStory()})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !apperrors.IsProviderTimeout(err) {
		t.Fatalf("expected provider timeout, got %v", err)
	}
}

func TestGenerate_CharacterFailureAbortsRequest(t *testing.T) {
	provider := happyProvider()
	provider.characterErr = apperrors.NewProviderHTTPError(500, "boom")
	service := NewGenerationService(provider, testConfig(), nil)

	_, err := service.Generate(context.Background(), models.GenerationRequest{Story: validStory()})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !apperrors.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestGenerate_SingleCallMakesOneRequest(t *testing.T) {
	provider := happyProvider()
	provider.singleCallResponse = strings.Join([]string{
		"GENRE: Heist",
		"TONE: Playful",
		"SETTING: Casino",
		"===SCREENPLAY===",
		"INT. VAULT - NIGHT",
		"===CHARACTERS===",
		"Name: Kit",
		"===SOUND_DESIGN===",
		"SCENE 1: The Drop",
	}, "\n")
	service := NewGenerationService(provider, testConfig(), nil)

	result, err := service.Generate(context.Background(), models.GenerationRequest{
		Story:      validStory(),
		SingleCall: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.callCount() != 1 {
		t.Fatalf("expected exactly 1 provider call, got %d", provider.callCount())
	}
	if !result.OK {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.GenreAnalysis.Genre != "Heist" {
		t.Fatalf("unexpected analysis: %+v", result.GenreAnalysis)
	}
	if result.Meta.Mode != ModeSingleCall {
		t.Fatalf("unexpected mode: %q", result.Meta.Mode)
	}
	if len(result.Characters) != 1 || result.Characters[0].Name != "Kit" {
		t.Fatalf("unexpected characters: %+v", result.Characters)
	}
}

func TestGenerate_SingleCallMissingSectionsReported(t *testing.T) {
	provider := happyProvider()
	provider.singleCallResponse = "GENRE: Heist\nTONE: Playful\nSETTING: Casino\n===SCREENPLAY===\nINT. VAULT - NIGHT"
	service := NewGenerationService(provider, testConfig(), nil)

	result, err := service.Generate(context.Background(), models.GenerationRequest{
		Story:      validStory(),
		SingleCall: true,
	})
	if err != nil {
		t.Fatalf("missing sections must not fail the request: %v", err)
	}
	if result.OK {
		t.Fatalf("expected errors to be reported")
	}
	if len(result.Errors) != 2 {
		t.Fatalf("got %d errors, want 2 (characters + sound design): %v", len(result.Errors), result.Errors)
	}
	if result.Screenplay == "" {
		t.Fatalf("parsed sections must be kept")
	}
}

func TestGenerate_ConfigSingleCallFlag(t *testing.T) {
	provider := happyProvider()
	provider.singleCallResponse = "GENRE: A\nTONE: B\nSETTING: C\n===SCREENPLAY===\nx\n===CHARACTERS===\ny\n===SOUND_DESIGN===\nz"
	cfg := testConfig()
	cfg.AISingleCall = true
	service := NewGenerationService(provider, cfg, nil)

	result, err := service.Generate(context.Background(), models.GenerationRequest{Story: validStory()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.callCount() != 1 {
		t.Fatalf("expected single call via config flag, got %d calls", provider.callCount())
	}
	if result.Meta.Mode != ModeSingleCall {
		t.Fatalf("unexpected mode: %q", result.Meta.Mode)
	}
}

func TestGenerate_ProgressTrackerLifecycle(t *testing.T) {
	provider := happyProvider()
	progress := NewProgressService()
	service := NewGenerationService(provider, testConfig(), progress)

	result, err := service.Generate(context.Background(), models.GenerationRequest{
		Story:  validStory(),
		TaskID: "task-123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Meta.TaskID != "task-123" {
		t.Fatalf("task id not preserved: %q", result.Meta.TaskID)
	}

	tracker, exists := progress.GetTracker("task-123")
	if !exists {
		t.Fatalf("tracker missing")
	}
	select {
	case <-tracker.Done():
	default:
		t.Fatalf("tracker should be finished")
	}
}

func TestValidateStoryInput_EmptyStory(t *testing.T) {
	_, err := ValidateStoryInput("   \n\t ", 120)
	if err == nil {
		t.Fatalf("expected error")
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Type != apperrors.ErrorTypeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveLanguage(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"", "English"},
		{"en", "English"},
		{"hi", "Hindi"},
		{"te", "Telugu"},
		{"ta", "Tamil"},
		{"kn", "Kannada"},
		{"ml", "Malayalam"},
		{"HI", "Hindi"},
		{"French", "French"},
	}
	for _, tc := range cases {
		if got := resolveLanguage(tc.code); got != tc.want {
			t.Fatalf("resolveLanguage(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}
