package names

import (
	"math/rand/v2"
	"strings"
)

// syllables for name generation. Combined in twos and threes they produce
// creature-like session names such as "zubelette" or "drakoon".
var syllables = []string{
	"ba", "bel", "bi", "bul", "cha", "chi", "cor", "cru",
	"dex", "dra", "dro", "eev", "fen", "flo", "gar", "gle",
	"gro", "hop", "jig", "kab", "kar", "kel", "ko", "lax",
	"lu", "mag", "mar", "maw", "mew", "mol", "nido", "nix",
	"oni", "pex", "pid", "pika", "pol", "quag", "rai", "rat",
	"ru", "sab", "sand", "scy", "sel", "slo", "sno", "squir",
	"sta", "syl", "tau", "tor", "ul", "vap", "vee", "vol",
	"vul", "wig", "zap", "zu",
}

// endings close a generated name so it reads as a noun.
var endings = []string{
	"a", "ab", "ar", "as", "e", "eon", "er", "ette",
	"ix", "o", "on", "oo", "or", "u", "ur", "y",
}

// Generate produces a random creature-like session name.
func Generate() string {
	var b strings.Builder
	n := 2
	if rand.IntN(2) == 0 {
		n = 3
	}
	for i := 0; i < n; i++ {
		b.WriteString(syllables[rand.IntN(len(syllables))])
	}
	b.WriteString(endings[rand.IntN(len(endings))])
	return b.String()
}
