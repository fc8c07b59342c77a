package wordjam

import (
	"math/rand"
	"strings"
)

// guessResult classifies one guess submission.
type guessResult int

const (
	guessIncorrect guessResult = iota
	guessCorrect
	guessWon      // correct, and it was the last word
	guessGameOver // rejected, the game is already won
)

// newGame starts a fresh game over words.
func newGame(words []string) GameState {
	g := GameState{Words: words}
	g.Hint = scrambleWord(g.CurrentWord())
	return g
}

// CurrentWord returns the word to guess, or "" when the game is over.
func (g *GameState) CurrentWord() string {
	if g.Index >= len(g.Words) {
		return ""
	}
	return g.Words[g.Index]
}

// guess submits one attempt. Matching is case-insensitive on the trimmed
// input. A correct guess advances to the next word; guessing the last word
// wins the game and further submissions are rejected.
func (g *GameState) guess(input string) guessResult {
	if g.Won {
		return guessGameOver
	}
	input = strings.TrimSpace(input)
	if !strings.EqualFold(input, g.CurrentWord()) {
		return guessIncorrect
	}

	g.Index++
	if g.Index >= len(g.Words) {
		g.Won = true
		g.Hint = ""
		return guessWon
	}
	g.Hint = scrambleWord(g.CurrentWord())
	return guessCorrect
}

// scrambleWord returns an anagram of word to display as the hint,
// reshuffling until it differs from the word itself.
func scrambleWord(word string) string {
	if len(word) < 2 {
		return word
	}
	letters := []rune(word)
	for i := 0; i < 10; i++ {
		rand.Shuffle(len(letters), func(a, b int) {
			letters[a], letters[b] = letters[b], letters[a]
		})
		if string(letters) != word {
			break
		}
	}
	return string(letters)
}
