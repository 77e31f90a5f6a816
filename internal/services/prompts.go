// internal/services/prompts.go
package services

import (
	"fmt"
	"strings"

	"github.com/Corphon/CineWeaverMCP/internal/models"
)

// languageNames 受支持的输出语言代码映射
var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"te": "Telugu",
	"ta": "Tamil",
	"kn": "Kannada",
	"ml": "Malayalam",
}

// resolveLanguage 将语言代码解析为语言名称，未知代码原样透传
func resolveLanguage(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "English"
	}
	if name, ok := languageNames[strings.ToLower(trimmed)]; ok {
		return name
	}
	return trimmed
}

// languageDirective 输出语言指令，追加在各生成提示词的规则区
func languageDirective(language string) string {
	return fmt.Sprintf("- Write ALL output in %s.\n", resolveLanguage(language))
}

// analysisBlock 将分析结果渲染为提示词上下文
func analysisBlock(analysis models.GenreAnalysis) string {
	if analysis.IsEmpty() {
		return ""
	}
	return fmt.Sprintf("Genre: %s\nTone: %s\nSetting: %s\n",
		analysis.Genre, analysis.Tone, analysis.Setting)
}

// buildGenrePrompt 类型/基调/背景检测提示词（要求纯JSON输出）
func buildGenrePrompt(story string) string {
	var b strings.Builder
	b.WriteString("You are a film development analyst.\n")
	b.WriteString("Task: Identify the likely GENRE, TONE, and SETTING of the story idea.\n")
	b.WriteString("Strict rules:\n")
	b.WriteString("- Output MUST be valid JSON only (no markdown, no commentary, no code fences).\n")
	b.WriteString("- JSON keys must be exactly: genre, tone, setting\n")
	b.WriteString("- Values must be short strings (1-6 words each).\n")
	b.WriteString("\n")
	b.WriteString("Return JSON now for this story idea:\n")
	b.WriteString(story)
	b.WriteString("\n")
	return b.String()
}

// buildScreenplayPrompt 剧本生成提示词（严格行业格式）
func buildScreenplayPrompt(story string, analysis models.GenreAnalysis, language string) string {
	var b strings.Builder
	b.WriteString("You are a professional screenwriter.\n")
	b.WriteString("Write an industry-formatted SCREENPLAY based on the story idea.\n")
	b.WriteString("\n")
	b.WriteString("STRICT FORMAT RULES (MUST FOLLOW):\n")
	b.WriteString("1) NO MARKDOWN. Output plain text only.\n")
	b.WriteString("2) Scene headings MUST be in ALL CAPS and start with INT. or EXT.\n")
	b.WriteString("   Example: INT. ABANDONED THEATRE - NIGHT\n")
	b.WriteString("3) Use standard screenplay blocks: ACTION, CHARACTER, DIALOGUE, PARENTHETICAL, TRANSITIONS.\n")
	b.WriteString("4) CHARACTER NAMES MUST BE UPPERCASE and centered using indentation: 20 leading spaces.\n")
	b.WriteString("   Example line: '                    ALEX'\n")
	b.WriteString("5) Dialogue lines should be indented 12 spaces.\n")
	b.WriteString("6) Parentheticals should be indented 10 spaces and wrapped in parentheses.\n")
	b.WriteString("7) Keep spacing readable and consistent. Preserve line breaks.\n")
	b.WriteString("8) Do not include any explanations, outlines, or bullet lists. Only the screenplay.\n")
	b.WriteString(languageDirective(language))
	b.WriteString("\n")
	b.WriteString("CONTEXT (use as guidance, not as extra output):\n")
	b.WriteString(analysisBlock(analysis))
	b.WriteString("\n")
	b.WriteString("STORY IDEA:\n")
	b.WriteString(story)
	b.WriteString("\n\n")
	b.WriteString("Deliver a complete short screenplay (approximately 3-6 scenes).\n")
	return b.String()
}

// buildCharacterPrompt 角色档案生成提示词（固定字段，"---"分隔）
func buildCharacterPrompt(story string, analysis models.GenreAnalysis, language string) string {
	var b strings.Builder
	b.WriteString("You are a character development specialist for film/TV.\n")
	b.WriteString("Generate DETAILED CHARACTER PROFILES derived from the story idea.\n")
	b.WriteString("\n")
	b.WriteString("STRICT OUTPUT RULES:\n")
	b.WriteString("- NO MARKDOWN. Plain text only.\n")
	b.WriteString("- Create 3 to 6 main characters (no extras list).\n")
	b.WriteString("- Each character must be separated by a clear divider line exactly: '---'\n")
	b.WriteString("- For each character, output these fields EXACTLY with labels:\n")
	b.WriteString("  Name:\n")
	b.WriteString("  Age:\n")
	b.WriteString("  Background:\n")
	b.WriteString("  Psychological Depth:\n")
	b.WriteString("  Motivation:\n")
	b.WriteString("  Internal Conflict:\n")
	b.WriteString("  Character Arc:\n")
	b.WriteString("  Relationships:\n")
	b.WriteString("- Keep each field substantial but concise (2-6 sentences each).\n")
	b.WriteString("- Do not add any other fields. Do not add commentary.\n")
	b.WriteString(languageDirective(language))
	b.WriteString("\n")
	b.WriteString("CONTEXT:\n")
	b.WriteString(analysisBlock(analysis))
	b.WriteString("\n")
	b.WriteString("STORY IDEA:\n")
	b.WriteString(story)
	b.WriteString("\n")
	return b.String()
}

// buildSoundDesignPrompt 声音设计提示词（SCENE n: 标题 + 固定小节）
func buildSoundDesignPrompt(story string, analysis models.GenreAnalysis, language string) string {
	var b strings.Builder
	b.WriteString("You are a film sound designer and re-recording mixer.\n")
	b.WriteString("Create a SCENE-BASED SOUND DESIGN PLAN for the story idea.\n")
	b.WriteString("\n")
	b.WriteString("STRICT OUTPUT RULES:\n")
	b.WriteString("- NO MARKDOWN. Plain text only.\n")
	b.WriteString("- Provide 3 to 6 scenes.\n")
	b.WriteString("- For each scene, start with a heading exactly like: 'SCENE 1: <short name>'\n")
	b.WriteString("- Under each scene, include these sections EXACTLY with labels in ALL CAPS:\n")
	b.WriteString("  MUSIC GENRE:\n")
	b.WriteString("  AMBIENT SOUND:\n")
	b.WriteString("  FOLEY EFFECTS:\n")
	b.WriteString("  MIXING NOTES:\n")
	b.WriteString("  EMOTIONAL ALIGNMENT:\n")
	b.WriteString("- Each section must be 1-4 sentences (or compact lists in a single line).\n")
	b.WriteString("- Ensure recommendations match the scene mood and overall tone.\n")
	b.WriteString("- Do not add any other sections or commentary.\n")
	b.WriteString(languageDirective(language))
	b.WriteString("\n")
	b.WriteString("CONTEXT:\n")
	b.WriteString(analysisBlock(analysis))
	b.WriteString("\n")
	b.WriteString("STORY IDEA:\n")
	b.WriteString(story)
	b.WriteString("\n")
	return b.String()
}

// buildSingleCallPrompt 单次调用提示词（标记分节的完整输出）
func buildSingleCallPrompt(story string, language string) string {
	var b strings.Builder
	b.WriteString("You are a professional screenwriter and film development team.\n")
	b.WriteString("Generate ALL outputs in ONE response using the exact markers below.\n")
	b.WriteString("STRICT RULES:\n")
	b.WriteString("- NO markdown. Plain text only.\n")
	b.WriteString("- Use the markers EXACTLY as shown (each marker on its own line).\n")
	b.WriteString("- Do not add extra sections, headers, or commentary.\n")
	b.WriteString(languageDirective(language))
	b.WriteString("\n")
	b.WriteString("First output 3 single-line fields:\n")
	b.WriteString("GENRE: <1-6 words>\n")
	b.WriteString("TONE: <1-6 words>\n")
	b.WriteString("SETTING: <1-10 words>\n")
	b.WriteString("\n")
	b.WriteString("Then output the content blocks with these markers:\n")
	b.WriteString("===SCREENPLAY===\n")
	b.WriteString("(industry-formatted screenplay, 3-6 scenes, strict screenplay formatting, no bullets)\n")
	b.WriteString("===CHARACTERS===\n")
	b.WriteString("(3-6 characters, plain text, separate each character with a divider line exactly: '---')\n")
	b.WriteString("===SOUND_DESIGN===\n")
	b.WriteString("(3-6 scenes, each scene heading 'SCENE N: <name>' and sections: MUSIC GENRE, AMBIENT SOUND, FOLEY EFFECTS, MIXING NOTES, EMOTIONAL ALIGNMENT)\n")
	b.WriteString("\n")
	b.WriteString("STORY IDEA:\n")
	b.WriteString(story)
	b.WriteString("\n")
	return b.String()
}
