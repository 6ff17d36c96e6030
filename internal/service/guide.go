package service

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	guideMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	guideSanitizer = bluemonday.UGCPolicy()
)

// GuideStep 表示分步引导中的一页
type GuideStep struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	HTML        string `json:"html"`
	ImageURL    string `json:"image_url,omitempty"`
}

type guideStepSource struct {
	title    string
	markdown string
	image    string
}

// 预设对应的引导脚本；描述以 Markdown 书写，渲染后消毒输出
var guideScripts = map[string][]guideStepSource{
	"brushing": {
		{title: "Step 1", markdown: "Get your **toothpaste** and **toothbrush**", image: "GetyourTB&TP.gif"},
		{title: "Step 2", markdown: "Put a *pea-sized* toothpaste on your brush", image: "Puttoothpaste.gif"},
		{title: "Step 3", markdown: "Brush all your teeth in circles for **2 minutes**", image: "Brushing.gif"},
		{title: "Step 4", markdown: "Rinse your mouth and toothbrush", image: "Rinseoutwater.gif"},
	},
}

// GuideService 渲染例程的分步引导内容
type GuideService struct {
	stepAssetURLPath string
}

// NewGuideService 构造 GuideService，stepAssetURLPath 为步骤插图的 URL 前缀。
func NewGuideService(stepAssetURLPath string) *GuideService {
	trimmed := strings.TrimRight(strings.TrimSpace(stepAssetURLPath), "/")
	if trimmed == "" {
		trimmed = "/static/asset-step-gif"
	}
	return &GuideService{stepAssetURLPath: trimmed}
}

// StepsFor 返回例程的引导步骤；预设键与例程名都可命中脚本，
// 尚无脚本的例程返回单页占位。
func (s *GuideService) StepsFor(presetKey, routineName string) []GuideStep {
	key := matchGuideKey(presetKey, routineName)
	sources, ok := guideScripts[key]
	if !ok {
		return []GuideStep{{
			Title:       "Coming soon",
			Description: "Book Guide steps for this routine will be available soon.",
			HTML:        renderGuideMarkdown("Book Guide steps for this routine will be available soon."),
		}}
	}

	steps := make([]GuideStep, 0, len(sources))
	for _, src := range sources {
		step := GuideStep{
			Title:       src.title,
			Description: stripGuideMarkdown(src.markdown),
			HTML:        renderGuideMarkdown(src.markdown),
		}
		if src.image != "" {
			step.ImageURL = s.stepAssetURLPath + "/" + src.image
		}
		steps = append(steps, step)
	}
	return steps
}

func matchGuideKey(presetKey, routineName string) string {
	loweredKey := strings.ToLower(presetKey)
	loweredName := strings.ToLower(routineName)
	for key := range guideScripts {
		if strings.Contains(loweredKey, key) || strings.Contains(loweredName, strings.TrimSuffix(key, "ing")) {
			return key
		}
	}
	return ""
}

func renderGuideMarkdown(markdown string) string {
	var buf bytes.Buffer
	if err := guideMarkdown.Convert([]byte(markdown), &buf); err != nil {
		return ""
	}
	return guideSanitizer.Sanitize(buf.String())
}

func stripGuideMarkdown(markdown string) string {
	return strings.NewReplacer("**", "", "*", "", "`", "").Replace(markdown)
}

// GuidedPolicy 判定某个例程是否需要走分步引导才算完成。
// 核心不决定调用时机，判定标准由表现层注入。
type GuidedPolicy func(r Routine) bool

// DefaultGuidedVocabulary 为原始产品使用的占位词表
var DefaultGuidedVocabulary = []string{"brush", "eat", "bath"}

// VocabularyPolicy 构造基于子串词表的判定：例程名或预设键命中任一词即需引导。
func VocabularyPolicy(words ...string) GuidedPolicy {
	lowered := make([]string, 0, len(words))
	for _, w := range words {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(w)))
	}
	return func(r Routine) bool {
		name := strings.ToLower(r.Name)
		presetKey := ""
		if r.Preset != nil {
			presetKey = strings.ToLower(r.Preset.Key)
		}
		for _, w := range lowered {
			if w == "" {
				continue
			}
			if strings.Contains(name, w) || strings.Contains(presetKey, w) {
				return true
			}
		}
		return false
	}
}
