package knowledgebase

import "github.com/varoOP/tankodb/internal/domain"

// seedEntries returns the built-in popular-title list used to seed a fresh
// knowledge base document. Counts are point-in-time snapshots; the resolver
// overwrites them as scrapes verify newer data. Alias lists cover well-known
// translated or romanized names.
func seedEntries() map[string]*domain.KnowledgeBaseEntry {
	return map[string]*domain.KnowledgeBaseEntry{
		"one piece":   {Title: "One Piece", Chapters: 1112, Volumes: 108},
		"naruto":      {Title: "Naruto", Chapters: 700, Volumes: 72},
		"bleach":      {Title: "Bleach", Chapters: 686, Volumes: 74},
		"dragon ball": {Title: "Dragon Ball", Chapters: 519, Volumes: 42},
		"jujutsu kaisen": {
			Title: "Jujutsu Kaisen", Chapters: 257, Volumes: 26,
			Aliases: []string{"sorcery fight"},
		},
		"demon slayer": {
			Title: "Demon Slayer", Chapters: 205, Volumes: 23,
			Aliases: []string{"kimetsu no yaiba", "demon slayer kimetsu no yaiba"},
		},
		"attack on titan": {
			Title: "Attack on Titan", Chapters: 139, Volumes: 34,
			Aliases: []string{"shingeki no kyojin"},
		},
		"my hero academia": {
			Title: "My Hero Academia", Chapters: 430, Volumes: 40,
			Aliases: []string{"boku no hero academia"},
		},
		"hunter x hunter": {Title: "Hunter x Hunter", Chapters: 400, Volumes: 37},
		"tokyo ghoul":     {Title: "Tokyo Ghoul", Chapters: 144, Volumes: 14},
		"one punch man": {
			Title: "One-Punch Man", Chapters: 200, Volumes: 29,
			Aliases: []string{"onepunch man"},
		},
		"black clover": {Title: "Black Clover", Chapters: 368, Volumes: 36},
		"fairy tail":   {Title: "Fairy Tail", Chapters: 545, Volumes: 63},
		"haikyu": {
			Title: "Haikyu!!", Chapters: 402, Volumes: 45,
			Aliases: []string{"haikyuu"},
		},
		"kingdom":      {Title: "Kingdom", Chapters: 770, Volumes: 70},
		"vagabond":     {Title: "Vagabond", Chapters: 327, Volumes: 37},
		"vinland saga": {Title: "Vinland Saga", Chapters: 208, Volumes: 26},
		"berserk":      {Title: "Berserk", Chapters: 375, Volumes: 41},
		"slam dunk":    {Title: "Slam Dunk", Chapters: 276, Volumes: 31},
		"fullmetal alchemist": {
			Title: "Fullmetal Alchemist", Chapters: 116, Volumes: 27,
			Aliases: []string{"hagane no renkinjutsushi"},
		},
		"death note": {Title: "Death Note", Chapters: 108, Volumes: 12},
		"dr stone":   {Title: "Dr. Stone", Chapters: 232, Volumes: 26},
		"the promised neverland": {
			Title: "The Promised Neverland", Chapters: 181, Volumes: 20,
			Aliases: []string{"yakusoku no neverland"},
		},
		"spy x family": {Title: "Spy x Family", Chapters: 100, Volumes: 12},
		"chainsaw man": {Title: "Chainsaw Man", Chapters: 150, Volumes: 15},
	}
}
