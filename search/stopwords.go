package search

// stopWords are dropped during keyword extraction.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "that": {}, "the": {}, "to": {}, "was": {}, "will": {}, "with": {},
	"or": {}, "but": {}, "not": {}, "this": {}, "can": {}, "have": {}, "do": {}, "does": {},
	"get": {}, "set": {}, "use": {}, "using": {}, "used": {},
}

func isStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}
