package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/badoux/checkmail"
)

// MaxSecondaryPages is how many contact/legal pages are visited after the main page.
const MaxSecondaryPages = 2

var (
	emailRegex = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,24}`)

	secondaryPathRegex = regexp.MustCompile(`(?i)(contact|contacto|contactar|about|sobre|nosotros|quienes-somos|empresa|legal|aviso-legal|privacy|privacidad|politica-de-privacidad|impressum|imprint)`)

	noiseLocalParts = []string{
		"noreply", "no-reply", "no_reply", "donotreply", "do-not-reply", "mailer-daemon",
		"postmaster", "hostmaster", "webmaster", "abuse", "root", "wordpress",
		"example", "test", "user", "username", "tuemail", "youremail", "yourname",
	}

	noiseDomains = []string{
		"example.com", "example.org", "example.net", "example.es", "test.com", "domain.com",
		"email.com", "yourdomain.com", "tudominio.com", "sentry.io", "sentry-next.wixpress.com",
		"wixpress.com", "wix.com", "wordpress.com", "wordpress.org", "godaddy.com",
		"squarespace.com", "schema.org", "w3.org",
	}

	assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".css", ".js", ".ico"}

	webmailDomains = map[string]struct{}{
		"gmail.com": {}, "googlemail.com": {}, "hotmail.com": {}, "hotmail.es": {},
		"outlook.com": {}, "outlook.es": {}, "live.com": {}, "live.es": {}, "msn.com": {},
		"yahoo.com": {}, "yahoo.es": {}, "ymail.com": {}, "icloud.com": {}, "me.com": {},
		"aol.com": {}, "protonmail.com": {}, "proton.me": {}, "gmx.com": {}, "gmx.es": {},
		"zoho.com": {}, "yandex.com": {}, "mail.com": {}, "telefonica.net": {},
	}
)

// Email is a candidate address found on a website.
type Email struct {
	Address   string `json:"address"`
	Corporate bool   `json:"corporate"`
}

// IsWebmail reports whether the address belongs to a public webmail provider.
func IsWebmail(address string) bool {
	_, ok := webmailDomains[domainOf(address)]
	return ok
}

// FindEmails extracts, filters and classifies the addresses present in a
// page's visible text and mailto links. Output is lower-cased, de-duplicated
// and in order of first appearance.
func FindEmails(text string, links []string) []Email {
	var candidates []string
	for _, l := range links {
		if addr, ok := mailtoAddress(l); ok {
			candidates = append(candidates, addr)
		}
	}
	candidates = append(candidates, emailRegex.FindAllString(text, -1)...)

	seen := make(map[string]struct{}, len(candidates))
	var out []Email
	for _, c := range candidates {
		addr := strings.ToLower(strings.Trim(strings.TrimSpace(c), "."))
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		if isNoise(addr) {
			continue
		}
		if err := checkmail.ValidateFormat(addr); err != nil {
			continue
		}
		out = append(out, Email{Address: addr, Corporate: !IsWebmail(addr)})
	}
	return out
}

// Merge appends the addresses of next not already present in acc, comparing
// case-insensitively.
func Merge(acc, next []Email) []Email {
	seen := make(map[string]struct{}, len(acc))
	for _, e := range acc {
		seen[strings.ToLower(e.Address)] = struct{}{}
	}
	for _, e := range next {
		k := strings.ToLower(e.Address)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		acc = append(acc, e)
	}
	return acc
}

// Best picks the first corporate address, else the first generic one.
func Best(emails []Email) string {
	for _, e := range emails {
		if e.Corporate {
			return e.Address
		}
	}
	if len(emails) > 0 {
		return emails[0].Address
	}
	return ""
}

// SecondaryPages returns up to MaxSecondaryPages same-origin links whose path
// looks like a contact, about, legal or privacy page.
func SecondaryPages(base string, links []string) []string {
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return nil
	}
	baseHost := normalizeHost(b.Host)
	basePath := strings.TrimRight(b.Path, "/")

	seen := map[string]struct{}{}
	var out []string
	for _, raw := range links {
		u, err := b.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		if normalizeHost(u.Host) != baseHost {
			continue
		}
		path := strings.TrimRight(u.Path, "/")
		if path == basePath || !secondaryPathRegex.MatchString(path) {
			continue
		}
		u.Fragment = ""
		key := normalizeHost(u.Host) + path
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u.String())
		if len(out) == MaxSecondaryPages {
			break
		}
	}
	return out
}

func mailtoAddress(link string) (string, bool) {
	l := strings.TrimSpace(link)
	if len(l) < 7 || !strings.EqualFold(l[:7], "mailto:") {
		return "", false
	}
	addr := l[7:]
	if i := strings.IndexAny(addr, "?#"); i >= 0 {
		addr = addr[:i]
	}
	if unescaped, err := url.PathUnescape(addr); err == nil {
		addr = unescaped
	}
	addr = strings.TrimSpace(addr)
	return addr, addr != ""
}

func isNoise(addr string) bool {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return true
	}
	local, domain := addr[:at], addr[at+1:]

	for _, s := range assetSuffixes {
		if strings.HasSuffix(addr, s) {
			return true
		}
	}
	for _, n := range noiseLocalParts {
		if local == n || strings.HasPrefix(local, n+"+") {
			return true
		}
	}
	if strings.Contains(local, "noreply") || strings.Contains(local, "no-reply") {
		return true
	}
	for _, d := range noiseDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func domainOf(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(addr[at+1:]))
}

func normalizeHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}
