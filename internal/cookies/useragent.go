package cookies

import (
	"math/rand/v2"
	"strings"
)

// UserAgents is the pool of realistic desktop user agents
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:134.0) Gecko/20100101 Firefox/134.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:132.0) Gecko/20100101 Firefox/132.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
}

// RandomUserAgent picks any agent from the pool
func RandomUserAgent() string {
	return UserAgents[rand.IntN(len(UserAgents))]
}

// UserAgentFor returns an agent consistent with the browser the cookies come
// from. Unknown browsers get the first Chrome agent.
func UserAgentFor(browser string) string {
	b := strings.ToLower(browser)
	for _, ua := range UserAgents {
		switch b {
		case "firefox":
			if strings.Contains(ua, "Firefox") {
				return ua
			}
		case "edge":
			if strings.Contains(ua, "Edg/") {
				return ua
			}
		case "safari":
			if strings.Contains(ua, "Safari") && !strings.Contains(ua, "Chrome") {
				return ua
			}
		case "chrome", "chromium", "brave", "vivaldi", "opera", "whale":
			if strings.Contains(ua, "Chrome") && !strings.Contains(ua, "Edg/") {
				return ua
			}
		}
	}
	return UserAgents[0]
}

// UserAgentForSource matches the agent to the cookie source, random when anonymous
func UserAgentForSource(src Source) string {
	if src.Browser != "" {
		return UserAgentFor(src.Browser)
	}
	return RandomUserAgent()
}
