package redact

import (
	"strings"
	"testing"
)

func BenchmarkRedact(b *testing.B) {
	doc, entities := syntheticDocument()
	sizes := map[string]int{"short": 1, "medium": 10, "long": 100}
	for name, n := range sizes {
		text := strings.Repeat(doc, n)
		b.Run("span/"+name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = BySpan(text, entities)
			}
		})
		b.Run("text/"+name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = ReplaceAll(text, entities)
			}
		})
	}
}
