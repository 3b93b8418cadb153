package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowLoginGuide explains the two ways a run gets past the login page
func ShowLoginGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "🔐 SIGNING IN TO MAGISTO")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "OPTION A - automatic login")
	fmt.Fprintln(w, "   Store your email and password once:")
	fmt.Fprintln(w, "     magistodl auth login --email you@example.com")
	fmt.Fprintln(w, "   or export MAGISTODL_EMAIL and MAGISTODL_PASSWORD.")
	fmt.Fprintln(w, "   The browser fills in the login form for you.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "OPTION B - manual login")
	fmt.Fprintln(w, "   Run without credentials. A Chrome window opens on the login page:")
	fmt.Fprintln(w, "   1. Sign in with email, Google or Facebook")
	fmt.Fprintln(w, "   2. Wait until your video library is visible")
	fmt.Fprintln(w, "   3. Return to this terminal and press Enter")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "💡 TIPS:")
	fmt.Fprintln(w, "   • Set browser.user_data_dir to keep the session between runs")
	fmt.Fprintln(w, "   • Social logins (Google, Facebook) always need option B")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "⚠️  Stored passwords are kept in the system keychain when available,")
	fmt.Fprintln(w, "   otherwise in an encrypted file in the magistodl config directory.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

// ShowQuickLoginGuide is the one-line version
func ShowQuickLoginGuide(w io.Writer) {
	fmt.Fprintln(w, "\n🔐 No stored credentials: sign in in the browser window, then press Enter here.")
	fmt.Fprintln(w, "   Run 'magistodl auth login' to make this automatic next time.")
}
