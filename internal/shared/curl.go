// Utilities for lifting session cookies out of a "Copy as cURL" browser capture.
package shared

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRegex = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieRegex = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
)

// CurlCapture holds the headers and cookies of a browser request copied as a cURL command.
type CurlCapture struct {
	Headers map[string]string
	Cookies map[string]string
}

// ParseCurlFile reads a file containing a cURL command and extracts its headers and cookies.
func ParseCurlFile(path string) (*CurlCapture, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command string. Cookies are taken from -b/--cookie or, failing that,
// from a Cookie header.
func ParseCurlCommand(data []byte) (*CurlCapture, error) {
	cmd := strings.ReplaceAll(string(data), "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	capture := &CurlCapture{Headers: map[string]string{}, Cookies: map[string]string{}}
	rawCookie := ""

	for _, match := range curlHeaderRegex.FindAllStringSubmatch(cmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if strings.EqualFold(key, "cookie") {
			if rawCookie == "" {
				rawCookie = value
			}
			continue
		}
		capture.Headers[key] = value
	}

	if match := curlCookieRegex.FindStringSubmatch(cmd); match != nil {
		rawCookie = firstGroup(match)
	}

	for _, pair := range strings.Split(rawCookie, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && name != "" {
			capture.Cookies[name] = value
		}
	}

	if len(capture.Headers) == 0 && len(capture.Cookies) == 0 {
		return nil, fmt.Errorf("%w: no headers or cookies found in curl command", ErrInvalidInput)
	}

	return capture, nil
}

// SessionCookies returns the two cookies the source requires for original video downloads.
func (c *CurlCapture) SessionCookies() (session, epass string, err error) {
	session, epass = c.Cookies["cookie_session"], c.Cookies["cookie_epass"]
	if session == "" || epass == "" {
		return "", "", fmt.Errorf("%w: cookie_session and cookie_epass must both be present", ErrMissingCredentials)
	}
	return session, epass, nil
}

func firstGroup(match []string) string {
	for _, group := range match[1:] {
		if group != "" {
			return group
		}
	}
	return ""
}
