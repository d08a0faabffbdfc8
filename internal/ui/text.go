package ui

import (
	"fmt"
	"strings"

	"github.com/sefaria-labs/explorer/internal/credential"
	"github.com/sefaria-labs/explorer/internal/persona"
)

// DisclaimerBanner returns the prototype disclaimer shown at startup and
// after persona selection.
func DisclaimerBanner() string {
	return `---

**IMPORTANT DISCLAIMER**

This is a **prototype/testing environment** for exploring the Sefaria integration.

- Do **NOT** rely on this information for **halachic (Jewish legal) decisions**
- Do **NOT** use this for **religious decision-making**
- Information provided may be **incomplete or incorrect**
- Always consult **qualified rabbinical authorities** for practical guidance

זוהי סביבת בדיקות בלבד. אין לסמוך על מידע זה להלכה למעשה.

---`
}

// SetupMessage explains how to obtain and enter an OpenRouter API key.
func SetupMessage(reason string) string {
	return fmt.Sprintf(`# Sefaria Explorer - Setup Required

%s

## How to get an OpenRouter API key:
1. Go to https://openrouter.ai/
2. Sign up or log in
3. Navigate to https://openrouter.ai/keys
4. Create a new key (starts with `+"`sk-or-`"+`)

Paste your API key below, or use `+"`/setkey sk-or-v1-your-key-here`"+`.`, reason)
}

// SettingsMessage shows the current key (masked) and how to replace it.
func SettingsMessage(currentKey string) string {
	return fmt.Sprintf(`# Settings

**OpenRouter API Key:** `+"`%s`"+`

To update your API key, type:

    /setkey sk-or-v1-your-new-key-here

The key will be validated and saved to your credential file.`,
		credential.Mask(currentKey))
}

// PersonaMenu lists the available personas for selection.
func PersonaMenu(personas []persona.Persona) string {
	var b strings.Builder
	b.WriteString("# Welcome to Sefaria Explorer\n\n")
	b.WriteString(DisclaimerBanner())
	b.WriteString("\n\n**Select an AI persona to begin** (type its key):\n\n")
	for _, p := range personas {
		fmt.Fprintf(&b, "- `%s` — **%s**: %s\n", p.Key, p.Name, p.Description)
	}
	return b.String()
}

// PersonaWelcome is shown once a persona has been selected.
func PersonaWelcome(p persona.Persona) string {
	return fmt.Sprintf(`## %s is ready!

*%s*

%s

You can now explore Jewish texts. Try:

- **Look up specific texts**: "Show me Genesis 1:1" or "Get Berakhot 2a"
- **Search for topics**: "Find texts about Shabbat"
- **Explore connections**: "What texts are linked to Exodus 20:1?"
- **Learn about concepts**: "Tell me about the topic of teshuvah"

ברוכים הבאים! אני יכול לעזור לך לחקור טקסטים יהודיים.

How can I help you explore today?`, p.Name, p.Description, DisclaimerBanner())
}
