// internal/parser/parser.go
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/Corphon/CineWeaverMCP/internal/errors"
	"github.com/Corphon/CineWeaverMCP/internal/models"
)

var (
	codeFenceRe   = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n(.*?)\\n?```\\s*$")
	nameFieldRe   = regexp.MustCompile(`(?i)^\s*Name\s*:\s*(.+)$`)
	sceneHeadRe   = regexp.MustCompile(`(?mi)^\s*SCENE\s+\d+\s*:`)
	genreLineRe   = regexp.MustCompile(`(?mi)^\s*GENRE\s*:\s*(.+)$`)
	toneLineRe    = regexp.MustCompile(`(?mi)^\s*TONE\s*:\s*(.+)$`)
	settingLineRe = regexp.MustCompile(`(?mi)^\s*SETTING\s*:\s*(.+)$`)
)

// 单次调用模式的分节标记
const (
	MarkerScreenplay  = "===SCREENPLAY==="
	MarkerCharacters  = "===CHARACTERS==="
	MarkerSoundDesign = "===SOUND_DESIGN==="
)

// NormalizeNewlines 将CRLF/CR统一为LF
func NormalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// StripCodeFences 剥离包裹整段输出的markdown代码围栏
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := codeFenceRe.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// ParseGenreAnalysis 解析类型/基调/背景JSON
//
// 先尝试整段严格解码；失败时从首个 '{' 起用流式解码器提取一个对象。
func ParseGenreAnalysis(text string) (*models.GenreAnalysis, error) {
	cleaned := StripCodeFences(NormalizeNewlines(text))

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		idx := strings.Index(cleaned, "{")
		if idx < 0 {
			return nil, apperrors.NewParseFailure("genre analysis is not JSON", err)
		}
		dec := json.NewDecoder(strings.NewReader(cleaned[idx:]))
		if err := dec.Decode(&raw); err != nil {
			return nil, apperrors.NewParseFailure("genre analysis JSON could not be recovered", err)
		}
	}

	analysis := &models.GenreAnalysis{Extra: make(map[string]interface{})}
	for key, value := range raw {
		str, _ := value.(string)
		switch strings.ToLower(key) {
		case "genre":
			analysis.Genre = strings.TrimSpace(str)
		case "tone":
			analysis.Tone = strings.TrimSpace(str)
		case "setting":
			analysis.Setting = strings.TrimSpace(str)
		default:
			analysis.Extra[key] = value
		}
	}
	return analysis, nil
}

// SplitCharacterBlocks 按独立的 "---" 行切分角色档案
//
// 每块的首行若为 "Name:" 字段则提取为角色名并从正文移除；
// 没有分隔线时整段作为单块返回。
func SplitCharacterBlocks(text string) []models.CharacterBlock {
	normalized := strings.TrimSpace(NormalizeNewlines(text))
	if normalized == "" {
		return nil
	}

	var chunks []string
	var current []string
	hasDivider := false
	for _, line := range strings.Split(normalized, "\n") {
		if strings.TrimSpace(line) == "---" {
			hasDivider = true
			chunks = append(chunks, strings.Join(current, "\n"))
			current = current[:0]
			continue
		}
		current = append(current, line)
	}
	chunks = append(chunks, strings.Join(current, "\n"))

	var blocks []models.CharacterBlock
	for _, chunk := range chunks {
		body := strings.TrimSpace(chunk)
		if body == "" {
			continue
		}

		// 仅识别块首行的 Name 字段，提取后从正文移除
		name := ""
		lines := strings.Split(body, "\n")
		if m := nameFieldRe.FindStringSubmatch(lines[0]); m != nil {
			name = strings.TrimSpace(m[1])
			body = strings.TrimSpace(strings.Join(lines[1:], "\n"))
		}
		if name == "" {
			if hasDivider {
				name = fmt.Sprintf("Character %d", len(blocks)+1)
			} else {
				name = "Character"
			}
		}
		blocks = append(blocks, models.CharacterBlock{Name: name, Body: body})
	}
	return blocks
}

// SplitSoundScenes 按 "SCENE n:" 行首切分声音设计场景
//
// 匹配不区分大小写，标题保留原始大小写；没有场景标题时整段作为
// "Sound Design" 单块返回。
func SplitSoundScenes(text string) []models.SoundScene {
	normalized := strings.TrimSpace(NormalizeNewlines(text))
	if normalized == "" {
		return nil
	}

	locs := sceneHeadRe.FindAllStringIndex(normalized, -1)
	if len(locs) == 0 {
		return []models.SoundScene{{Heading: "Sound Design", Body: normalized}}
	}

	var scenes []models.SoundScene
	for i, loc := range locs {
		end := len(normalized)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segment := strings.TrimSpace(normalized[loc[0]:end])
		if segment == "" {
			continue
		}

		// 首个非空行为标题，其余为正文
		heading := strings.TrimSpace(segment)
		body := ""
		if idx := strings.Index(segment, "\n"); idx >= 0 {
			heading = strings.TrimSpace(segment[:idx])
			body = strings.TrimSpace(segment[idx+1:])
		}
		scenes = append(scenes, models.SoundScene{Heading: heading, Body: body})
	}
	return scenes
}

// SingleCallOutput 单次调用模式的解析结果
type SingleCallOutput struct {
	Genre       string
	Tone        string
	Setting     string
	Screenplay  string
	Characters  string
	SoundDesign string
	Errors      []string
}

// ParseSingleCallOutput 按分节标记拆分一次性生成的完整输出
func ParseSingleCallOutput(text string) *SingleCallOutput {
	normalized := NormalizeNewlines(text)
	out := &SingleCallOutput{}

	if m := genreLineRe.FindStringSubmatch(normalized); m != nil {
		out.Genre = strings.TrimSpace(m[1])
	} else {
		out.Errors = append(out.Errors, "missing GENRE line in single-call output")
	}
	if m := toneLineRe.FindStringSubmatch(normalized); m != nil {
		out.Tone = strings.TrimSpace(m[1])
	} else {
		out.Errors = append(out.Errors, "missing TONE line in single-call output")
	}
	if m := settingLineRe.FindStringSubmatch(normalized); m != nil {
		out.Setting = strings.TrimSpace(m[1])
	} else {
		out.Errors = append(out.Errors, "missing SETTING line in single-call output")
	}

	out.Screenplay = extractSection(normalized, MarkerScreenplay, MarkerCharacters, MarkerSoundDesign)
	if out.Screenplay == "" {
		out.Errors = append(out.Errors, "missing ===SCREENPLAY=== section in single-call output")
	}
	out.Characters = extractSection(normalized, MarkerCharacters, MarkerScreenplay, MarkerSoundDesign)
	if out.Characters == "" {
		out.Errors = append(out.Errors, "missing ===CHARACTERS=== section in single-call output")
	}
	out.SoundDesign = extractSection(normalized, MarkerSoundDesign, MarkerScreenplay, MarkerCharacters)
	if out.SoundDesign == "" {
		out.Errors = append(out.Errors, "missing ===SOUND_DESIGN=== section in single-call output")
	}
	return out
}

// extractSection 取 marker 之后、下一个任意标记之前的内容
func extractSection(text, marker string, otherMarkers ...string) string {
	start := strings.Index(text, marker)
	if start < 0 {
		return ""
	}
	start += len(marker)
	section := text[start:]

	end := len(section)
	for _, other := range otherMarkers {
		if idx := strings.Index(section, other); idx >= 0 && idx < end {
			end = idx
		}
	}
	return strings.TrimSpace(section[:end])
}

// ExtractResponseText 从松散结构的提供商响应中提取文本字段
//
// 依次尝试 response / text / output，再尝试 data 下同名字段。
func ExtractResponseText(payload map[string]interface{}) (string, bool) {
	for _, key := range []string{"response", "text", "output"} {
		if value, ok := payload[key].(string); ok && value != "" {
			return value, true
		}
	}
	if data, ok := payload["data"].(map[string]interface{}); ok {
		for _, key := range []string{"response", "text", "output"} {
			if value, ok := data[key].(string); ok && value != "" {
				return value, true
			}
		}
	}
	return "", false
}
