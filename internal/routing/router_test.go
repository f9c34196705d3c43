package routing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Greetings(t *testing.T) {
	for _, msg := range []string{
		"Halo!",
		"hai",
		"Terima kasih",
		"makasih!",
		"oke",
		"iya",
		"Good morning",
	} {
		route := Classify(msg)
		assert.Equal(t, Simple, route.Complexity, "message: %q", msg)
		assert.Equal(t, TierFlash, route.Tier, "message: %q", msg)
		assert.False(t, route.NeedsRAG, "message: %q", msg)
	}
}

func TestClassify_VeryShortIsSimple(t *testing.T) {
	route := Classify("apa kabar?")
	assert.Equal(t, Simple, route.Complexity)
	assert.False(t, route.NeedsRAG)
}

func TestClassify_DataQuestionIsAtLeastMedium(t *testing.T) {
	route := Classify("di kota mana saja ada outlet Kumon?")
	assert.Equal(t, Medium, route.Complexity)
	assert.True(t, route.NeedsRAG)
	assert.Equal(t, TierFlash, route.Tier)
}

func TestClassify_AnalyticalLongMessageIsComplex(t *testing.T) {
	msg := "Tolong analisis dan bandingkan potensi investasi franchise Kumon dengan franchise laundry. " +
		"Saya ingin tahu perkiraan modal awal, ROI, dan strategi pemilihan lokasi. " +
		"Jelaskan juga risiko utamanya."

	route := Classify(msg)
	assert.Equal(t, Complex, route.Complexity)
	assert.Equal(t, TierPro, route.Tier)
	assert.True(t, route.NeedsRAG)
}

func TestClassify_LongButNotAnalyticalStaysMedium(t *testing.T) {
	msg := "Saya sedang jalan-jalan di daerah Jakarta Selatan bersama keluarga dan kami ingin mampir ke salah satu tempat kursus untuk anak kami yang masih sekolah dasar"
	assert.Greater(t, len(msg), 100)

	route := Classify(msg)
	assert.Equal(t, Medium, route.Complexity)
	assert.Equal(t, TierFlash, route.Tier)
}

func TestClassify_Deterministic(t *testing.T) {
	msg := "berapa jumlah outlet franchise kopi di Bandung?"
	first := Classify(msg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(msg))
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	assert.Equal(t, Classify("DIMANA OUTLET KUMON TERDEKAT?"), Classify("dimana outlet kumon terdekat?"))
}

func TestCountSentences(t *testing.T) {
	assert.Equal(t, 0, countSentences(""))
	assert.Equal(t, 1, countSentences("satu kalimat saja"))
	assert.Equal(t, 3, countSentences("satu. dua! tiga?"))
}

func TestClassify_SentencePushesScore(t *testing.T) {
	// Three sentences plus length over the long threshold plus one keyword.
	msg := strings.Repeat("kalimat pembuka yang cukup panjang sekali. ", 3) + "mengapa begitu?"
	route := Classify(msg)
	assert.Equal(t, Complex, route.Complexity)
}
