package i18n

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	LocaleENUS = "en-US"
	LocaleZHCN = "zh-CN"

	// DefaultLocale 默认语言
	DefaultLocale = LocaleENUS
)

// T 翻译消息 key，未命中时回退默认语言，再回退 key 本身
func T(locale, key string) string {
	if msg, ok := lookup(NormalizeLocale(locale), key); ok {
		return msg
	}
	if msg, ok := lookup(DefaultLocale, key); ok {
		return msg
	}
	return key
}

// ResolveLocale 依次读取 ?lang=、Accept-Language
func ResolveLocale(c *gin.Context) string {
	if c == nil {
		return DefaultLocale
	}
	if lang := strings.TrimSpace(c.Query("lang")); lang != "" {
		return NormalizeLocale(lang)
	}
	header := c.GetHeader("Accept-Language")
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" || tag == "*" {
			continue
		}
		if locale := NormalizeLocale(tag); locale != "" {
			return locale
		}
	}
	return DefaultLocale
}

// NormalizeLocale 将语言标签映射到支持的语言
func NormalizeLocale(raw string) string {
	tag := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "_", "-"))
	switch {
	case tag == "":
		return DefaultLocale
	case strings.HasPrefix(tag, "zh"):
		return LocaleZHCN
	default:
		return LocaleENUS
	}
}

func lookup(locale, key string) (string, bool) {
	table, ok := messages[locale]
	if !ok {
		return "", false
	}
	msg, ok := table[key]
	return msg, ok
}
