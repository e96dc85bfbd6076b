package catalog

// seedSites is the default catalog for a fresh install. Aliases cover the
// spoken variants the recognizer actually produces ("google mail",
// "net flix"); the list matches what provisioning ships on the device.
var seedSites = map[string][]string{
	"gmail":     {"gmail", "google mail", "googlemail", "g mail"},
	"google":    {"google", "googol"},
	"facebook":  {"facebook", "fb", "face book"},
	"amazon":    {"amazon"},
	"netflix":   {"netflix", "net flix"},
	"youtube":   {"youtube", "you tube", "yt"},
	"twitter":   {"twitter", "tweet"},
	"instagram": {"instagram", "insta"},
	"linkedin":  {"linkedin", "linked in"},
	"paypal":    {"paypal", "pay pal"},
	"ebay":      {"ebay", "e bay"},
	"spotify":   {"spotify", "spot ify"},
	"apple":     {"apple", "icloud"},
	"microsoft": {"microsoft", "outlook", "hotmail"},
	"bank":      {"bank", "banking", "my bank"},
}

// Seed returns the default entries for a catalog file that does not exist yet.
func Seed() []Entry {
	entries := make([]Entry, 0, len(seedSites))
	for id, aliases := range seedSites {
		e, err := NewEntry(id, id, aliases)
		if err != nil {
			// Seed data is static; a bad entry is a programming error.
			panic(err)
		}
		entries = append(entries, e)
	}
	return entries
}
