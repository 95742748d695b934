package service

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var emailValidate = validator.New()

// 常见一次性邮箱域名，可通过 fraud.disposable_domains 追加
var builtinDisposableDomains = []string{
	"mailinator.com",
	"guerrillamail.com",
	"guerrillamail.net",
	"sharklasers.com",
	"10minutemail.com",
	"10minutemail.net",
	"tempmail.com",
	"temp-mail.org",
	"tempmail.net",
	"throwawaymail.com",
	"yopmail.com",
	"yopmail.net",
	"trashmail.com",
	"getnada.com",
	"dispostable.com",
	"maildrop.cc",
	"mailnesia.com",
	"mintemail.com",
	"fakeinbox.com",
	"mohmal.com",
	"emailondeck.com",
	"spamgourmet.com",
	"mailcatch.com",
	"tempr.email",
	"discard.email",
	"burnermail.io",
	"moakt.com",
	"mytemp.email",
	"tempinbox.com",
	"spam4.me",
}

// 公共邮箱服务商，同域名不作为关联信号
var publicEmailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"outlook.com":    {},
	"hotmail.com":    {},
	"live.com":       {},
	"msn.com":        {},
	"yahoo.com":      {},
	"ymail.com":      {},
	"icloud.com":     {},
	"me.com":         {},
	"aol.com":        {},
	"proton.me":      {},
	"protonmail.com": {},
	"gmx.com":        {},
	"mail.com":       {},
	"zoho.com":       {},
	"yandex.com":     {},
	"qq.com":         {},
	"163.com":        {},
	"126.com":        {},
	"sina.com":       {},
	"foxmail.com":    {},
}

// normalizeEmail 校验并归一化邮箱（去空白、小写）
func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if err := emailValidate.Var(trimmed, "required,max=254,email"); err != nil {
		return "", ErrInvalidEmail
	}
	email := strings.ToLower(trimmed)
	local, domain, ok := splitEmail(email)
	if !ok || local == "" || !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func splitEmail(email string) (string, string, bool) {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", "", false
	}
	return email[:at], email[at+1:], true
}

// canonicalEmail 去掉 +tag，gmail 额外去掉点号，用于识别同一收件箱
func canonicalEmail(email string) string {
	local, domain, ok := splitEmail(strings.ToLower(strings.TrimSpace(email)))
	if !ok {
		return ""
	}
	local = canonicalLocalPart(local, domain)
	if domain == "googlemail.com" {
		domain = "gmail.com"
	}
	return local + "@" + domain
}

func canonicalLocalPart(local, domain string) string {
	if idx := strings.Index(local, "+"); idx >= 0 {
		local = local[:idx]
	}
	if domain == "gmail.com" || domain == "googlemail.com" {
		local = strings.ReplaceAll(local, ".", "")
	}
	return local
}

// isDisposableDomain 域名或其上级域名命中一次性邮箱列表
func isDisposableDomain(domain string, extra []string) bool {
	domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return false
	}
	lists := [][]string{builtinDisposableDomains, extra}
	for _, list := range lists {
		for _, candidate := range list {
			if domain == candidate || strings.HasSuffix(domain, "."+candidate) {
				return true
			}
		}
	}
	return false
}

func isPublicEmailDomain(domain string) bool {
	_, ok := publicEmailDomains[strings.ToLower(domain)]
	return ok
}

// levenshtein 编辑距离，按 rune 计算
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return utf8.RuneCountInString(b)
	}
	if len(rb) == 0 {
		return utf8.RuneCountInString(a)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
