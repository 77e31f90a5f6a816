// internal/models/generation.go
package models

import (
	"strings"
	"time"
)

// GenerationRequest 生成管线的输入
//
// Temperature 为指针以区分「未提供」与显式的 0。
type GenerationRequest struct {
	Story         string   `json:"story"`
	Language      string   `json:"language,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MinStoryChars int      `json:"min_story_chars,omitempty"`
	SingleCall    bool     `json:"single_call,omitempty"`
	TaskID        string   `json:"task_id,omitempty"`
}

// GenreAnalysis 类型/基调/背景分析结果
type GenreAnalysis struct {
	Genre   string                 `json:"genre"`
	Tone    string                 `json:"tone"`
	Setting string                 `json:"setting"`
	Extra   map[string]interface{} `json:"-"`
}

// IsEmpty 判断分析结果是否为空
func (g GenreAnalysis) IsEmpty() bool {
	return g.Genre == "" && g.Tone == "" && g.Setting == ""
}

// CharacterBlock 单个角色档案
type CharacterBlock struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// SoundScene 单个场景的声音设计
type SoundScene struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// GenerationMeta 生成响应附带的元信息
type GenerationMeta struct {
	Model         string  `json:"model"`
	Provider      string  `json:"provider"`
	Mode          string  `json:"mode"`
	Temperature   float64 `json:"temperature"`
	MinStoryChars int     `json:"min_story_chars"`
	TaskID        string  `json:"task_id,omitempty"`
}

// GenerationResult 一次完整生成的产物
type GenerationResult struct {
	OK            bool             `json:"ok"`
	GenreAnalysis GenreAnalysis    `json:"genre_analysis"`
	Screenplay    string           `json:"screenplay"`
	Characters    []CharacterBlock `json:"characters"`
	SoundDesign   []SoundScene     `json:"sound_design"`
	Errors        []string         `json:"errors,omitempty"`
	Meta          GenerationMeta   `json:"meta"`
}

// CharactersText 角色档案的纯文本渲染（用于存储与导出）
func (r *GenerationResult) CharactersText() string {
	parts := make([]string, 0, len(r.Characters))
	for _, block := range r.Characters {
		text := "Name: " + block.Name
		if block.Body != "" {
			text += "\n" + block.Body
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// SoundDesignText 声音设计的纯文本渲染（用于存储与导出）
func (r *GenerationResult) SoundDesignText() string {
	parts := make([]string, 0, len(r.SoundDesign))
	for _, scene := range r.SoundDesign {
		text := scene.Heading
		if scene.Body != "" {
			text += "\n" + scene.Body
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

// SessionRecord 会话保存的生成内容
type SessionRecord struct {
	Username      string        `json:"username,omitempty"`
	Screenplay    string        `json:"screenplay,omitempty"`
	Characters    string        `json:"characters,omitempty"`
	SoundDesign   string        `json:"sound_design,omitempty"`
	GenreAnalysis GenreAnalysis `json:"genre_analysis"`
	Language      string        `json:"language,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ExportResult 导出文件的载荷
type ExportResult struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}
