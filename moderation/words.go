package moderation

import "embed"

// CensoredWords holds one word list per language, named after its ISO 639-1 code.
//
//go:embed censored/*.txt
var CensoredWords embed.FS

const CensoredDir = "censored"
