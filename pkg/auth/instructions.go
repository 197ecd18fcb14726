package auth

import (
	"fmt"
	"strings"
)

// ShowCookieGuide explains how to copy a Cookie header from the browser
func ShowCookieGuide() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("🍪 COPYING YOUR SESSION COOKIES")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
	fmt.Println("The API answers anonymous requests, but a logged-in session is less")
	fmt.Println("likely to be throttled. To reuse your browser session:")
	fmt.Println()
	fmt.Println("  1. Open https://summer.hackclub.com and sign in")
	fmt.Println("  2. Open Developer Tools (F12 or Cmd+Option+I) and select Network")
	fmt.Println("  3. Reload the page and click any request to summer.hackclub.com")
	fmt.Println("  4. Under Request Headers, copy the whole value of 'Cookie:'")
	fmt.Println()
	fmt.Println("Paste it as is, for example:  _session=abc123; theme=dark")
	fmt.Println()
	fmt.Println("⚠️  These cookies act as your login. Never share them.")
	fmt.Println("   They are only sent on a fresh run; resumed runs use the cookies")
	fmt.Println("   saved in the checkpoint.")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()
}
