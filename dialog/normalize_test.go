package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Yarın saat 15:00'te toplantı ekle", "yarin saat 15:00 te toplanti ekle"},
		{"BUGÜN ne yapıyorum?", "bugun ne yapiyorum"},
		{"Toplantıyı #2 sil!", "toplantiyi #2 sil"},
		{"  çok    boşluk\tvar ", "cok bosluk var"},
		{"İPTAL ET", "iptal et"},
		{"öğleden sonra müsait miyim", "ogleden sonra musait miyim"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeKeepsClockAndIndexRunes(t *testing.T) {
	norm := Normalize("9:30'da #3 numaralı kaydı taşı")
	assert.Contains(t, norm, "9:30")
	assert.Contains(t, norm, "#3")
}

func TestContainsWord(t *testing.T) {
	norm := Normalize("yarın toplantı ekle")
	assert.True(t, containsWord(norm, "toplanti"))
	assert.True(t, containsWord(norm, "yarin"))
	// Substrings of a token are not whole-word matches.
	assert.False(t, containsWord(norm, "toplan"))
	assert.False(t, containsWord(norm, "bugun"))
}

func TestContainsAnyMatchesPhrases(t *testing.T) {
	norm := Normalize("artık gerek yok sağol")
	assert.True(t, containsAny(norm, "gerek yok"))
	assert.False(t, containsAny(norm, "gerek var"))
	// The phrase must sit on token boundaries.
	assert.False(t, containsAny(Normalize("gereksiz yoklama"), "gerek yok"))
}
