package service

import (
	"cmp"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	_ "golang.org/x/image/webp"
)

// 展示名覆盖表：资产文件名不宜直接面向孩子时在这里改写
var presetLabelOverrides = map[string]string{
	"brushing": "Brush My Teeth",
	"eating":   "Let's Eat",
	"washing":  "Bath Time",
}

var ringtoneLabelOverrides = map[string]string{
	"mixkit-rooster-crowing-in-the-morning-2462": "Rooster Crow",
}

// bookguide/controller 是完成选择弹窗的插图，不作为例程预设
var excludedPresetKeys = map[string]struct{}{
	"bookguide":  {},
	"controller": {},
}

var (
	presetExtensions   = map[string]struct{}{".gif": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".svg": {}, ".webp": {}}
	ringtoneExtensions = map[string]struct{}{".mp3": {}, ".wav": {}, ".ogg": {}, ".m4a": {}}
	wordSplitter       = regexp.MustCompile(`[-_\s]+`)
)

// CatalogService 在启动时扫描资产目录，提供预设与铃声目录
type CatalogService struct {
	presets   []Preset
	ringtones []Ringtone
}

// NewCatalogService 加载两个目录；目录缺失时对应目录为空，不视作致命错误。
func NewCatalogService(assetDir, assetURLPath, alarmDir, alarmURLPath string) *CatalogService {
	return &CatalogService{
		presets:   LoadPresets(assetDir, assetURLPath),
		ringtones: LoadRingtones(alarmDir, alarmURLPath),
	}
}

// Presets 返回按展示名排序的预设目录。
func (s *CatalogService) Presets() []Preset {
	return s.presets
}

// Ringtones 返回按展示名排序的铃声目录。
func (s *CatalogService) Ringtones() []Ringtone {
	return s.ringtones
}

// FindPreset 按 key 查找预设。
func (s *CatalogService) FindPreset(key string) (Preset, bool) {
	lowered := strings.ToLower(strings.TrimSpace(key))
	for _, p := range s.presets {
		if p.Key == lowered {
			return p, true
		}
	}
	return Preset{}, false
}

// FindRingtone 按 key 查找铃声。
func (s *CatalogService) FindRingtone(key string) (Ringtone, bool) {
	lowered := strings.ToLower(strings.TrimSpace(key))
	for _, r := range s.ringtones {
		if r.Key == lowered {
			return r, true
		}
	}
	return Ringtone{}, false
}

// LoadPresets 扫描图片目录生成预设目录：key 取小写文件名，
// 展示名走覆盖表否则 Title Case，可解码的位图记录宽高。
func LoadPresets(dir, urlPath string) []Preset {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	presets := make([]Preset, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := presetExtensions[ext]; !ok {
			continue
		}

		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		key := strings.ToLower(base)
		if _, excluded := excludedPresetKeys[key]; excluded {
			continue
		}

		label, ok := presetLabelOverrides[key]
		if !ok {
			label = titleCase(base)
		}

		preset := Preset{
			Key:   key,
			Label: label,
			URL:   joinURLPath(urlPath, entry.Name()),
		}
		preset.Width, preset.Height = imageSize(filepath.Join(dir, entry.Name()))
		presets = append(presets, preset)
	}

	slices.SortFunc(presets, func(a, b Preset) int {
		return cmp.Compare(a.Label, b.Label)
	})
	return presets
}

// LoadRingtones 扫描音频目录生成铃声目录。
func LoadRingtones(dir, urlPath string) []Ringtone {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	ringtones := make([]Ringtone, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := ringtoneExtensions[ext]; !ok {
			continue
		}

		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		key := strings.ToLower(base)

		label, ok := ringtoneLabelOverrides[key]
		if !ok {
			label = titleCase(base)
		}

		ringtones = append(ringtones, Ringtone{
			Key:   key,
			Label: label,
			URL:   joinURLPath(urlPath, entry.Name()),
		})
	}

	slices.SortFunc(ringtones, func(a, b Ringtone) int {
		return cmp.Compare(a.Label, b.Label)
	})
	return ringtones
}

// imageSize 尝试解码图片头获取尺寸，svg 等无法解码的返回零值。
func imageSize(path string) (int, int) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func titleCase(s string) string {
	words := wordSplitter.Split(s, -1)
	parts := make([]string, 0, len(words))
	for _, word := range words {
		if word == "" {
			continue
		}
		parts = append(parts, strings.ToUpper(word[:1])+word[1:])
	}
	return strings.Join(parts, " ")
}

func joinURLPath(urlPath, name string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(urlPath, "/"), name)
}
