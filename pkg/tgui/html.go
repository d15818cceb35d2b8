package tgui

import "html"

// H is markup already safe for Telegram's HTML parse mode.
type H string

func (h H) String() string { return string(h) }

// Esc escapes plain text.
func Esc(s string) H { return H(html.EscapeString(s)) }

// B is bold escaped text.
func B(s string) H { return H("<b>" + html.EscapeString(s) + "</b>") }
