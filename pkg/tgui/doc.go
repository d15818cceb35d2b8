// Package tgui provides small text helpers for chat messages:
//   - Escaping and tag helpers for Telegram ParseMode="HTML"
//   - Rune-aware length and truncation (chat limits count characters, not bytes)
package tgui
