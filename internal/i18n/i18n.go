package i18n

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// fallbackLocale 缺失的键回落到该语言 / Missing keys fall back to this locale
const fallbackLocale = "en"

// catalogs 按语言注册的消息表 / catalogs maps a base language to its message table
var catalogs = map[string]map[string]string{
	"en": EnMessages,
	"fr": FrMessages,
}

// I18n 一个已解析语言的翻译器，创建后只读
// I18n is a translator bound to one resolved locale; it is read-only once built
type I18n struct {
	locale   string
	messages map[string]string
}

var global atomic.Pointer[I18n]

// Global 返回全局翻译器；未初始化时按环境变量检测语言
// Global returns the process-wide translator, detecting the locale from the environment on first use
func Global() *I18n {
	if g := global.Load(); g != nil {
		return g
	}
	global.CompareAndSwap(nil, New(""))
	return global.Load()
}

// Init 替换全局翻译器 / Init replaces the process-wide translator
func Init(locale string) {
	global.Store(New(locale))
}

// T 使用全局翻译器 / T translates with the process-wide translator
func T(key string, args ...any) string {
	return Global().T(key, args...)
}

// New 创建翻译器；空 locale 表示自动检测
// New builds a translator; an empty locale means detect it
func New(locale string) *I18n {
	if strings.TrimSpace(locale) == "" {
		locale = DetectLocale()
	}
	locale = normalizeLocale(locale)

	base := catalogs[fallbackLocale]
	merged := make(map[string]string, len(base))
	for k, v := range base {
		merged[k] = v
	}
	if overlay, ok := catalogs[locale]; ok && locale != fallbackLocale {
		for k, v := range overlay {
			merged[k] = v
		}
	}
	return &I18n{locale: locale, messages: merged}
}

// T 翻译 key；有参数时按 fmt 格式化，缺失时返回 key 本身
// T looks up key, formatting it with args when given; unknown keys come back verbatim
func (i *I18n) T(key string, args ...any) string {
	tmpl, ok := i.messages[key]
	switch {
	case !ok:
		return key
	case len(args) == 0:
		return tmpl
	default:
		return fmt.Sprintf(tmpl, args...)
	}
}

func (i *I18n) Locale() string { return i.locale }

// Supported lists the languages that ship a catalog.
func Supported() []string {
	out := make([]string, 0, len(catalogs))
	for lang := range catalogs {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// DetectLocale 依次读取 CALLSYNC_LANG、LC_ALL、LC_MESSAGES、LANG
// DetectLocale reads CALLSYNC_LANG, then the POSIX locale variables in precedence order
func DetectLocale() string {
	for _, env := range []string{"CALLSYNC_LANG", "LC_ALL", "LC_MESSAGES", "LANG"} {
		switch v := strings.TrimSpace(os.Getenv(env)); v {
		case "", "C", "POSIX":
			continue
		default:
			return normalizeLocale(v)
		}
	}
	return fallbackLocale
}

// normalizeLocale reduces "fr_CA.UTF-8" to a catalog language, or to a BCP 47 style tag
// when no catalog matches.
func normalizeLocale(s string) string {
	tag, _, _ := strings.Cut(strings.TrimSpace(s), ".")
	tag, _, _ = strings.Cut(tag, "@")
	if tag == "" {
		return fallbackLocale
	}
	tag = strings.ReplaceAll(tag, "_", "-")
	lang, _, _ := strings.Cut(strings.ToLower(tag), "-")
	if _, ok := catalogs[lang]; ok {
		return lang
	}
	return tag
}
