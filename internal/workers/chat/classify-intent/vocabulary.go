package classifyintent

import "regexp"

// Terms are matched on whole words against the lower-cased message, except
// forbidden terms which also match suffixed and attached forms.
var (
	forbiddenTerms = []string{
		"password", "passwd", "kata sandi", "katasandi", "sandi", "token", "api key",
		"apikey", "secret", "credential", "kredensial", "otp", "cvv", "pin",
		"nomor kartu",
	}

	// Suffixes accepted after a short forbidden term. Terms of five letters
	// or more match any word they start.
	forbiddenSuffixes = toSet("nya", "ku", "mu", "s")

	privateTerms = []string{
		"booking saya", "my booking", "pesanan saya", "booking", "bookingan",
		"pesanan", "pesananku", "reservasi", "riwayat", "history",
	}

	promoTerms = []string{
		"promo", "promosi", "diskon", "discount", "voucher", "kupon",
	}

	tripTerms = []string{
		"open trip", "trip", "trips", "tour", "paket", "jadwal", "schedule",
		"itinerary", "keberangkatan",
	}

	scheduleTerms = []string{"jadwal", "schedule", "keberangkatan", "berangkat"}

	// Facet terms ask for details of the matched trips.
	facilityTerms  = []string{"fasilitas", "facility", "facilities"}
	itineraryTerms = []string{"itinerary", "itinerari", "rundown"}
	reviewTerms    = []string{"review", "reviews", "ulasan", "testimoni", "rating"}
	facetTerms     = concat(facilityTerms, itineraryTerms, reviewTerms)

	articleTerms = []string{"blog", "artikel", "article", "tulisan"}

	travelTerms = []string{
		"liburan", "libur", "wisata", "perjalanan", "travel", "traveling", "destinasi",
		"pantai", "gunung", "hotel", "penginapan", "resort", "pesawat", "tiket",
		"bandara", "visa", "paspor", "koper", "backpacker", "kuliner", "snorkeling",
		"diving", "camping", "pulau", "trekking", "hiking", "jalan jalan", "vacation",
		"holiday", "packing", "oleh oleh",
	}

	dateScopeTerms = []struct {
		term  string
		scope string
	}{
		{"hari ini", "today"},
		{"today", "today"},
		{"bulan ini", "this_month"},
		{"this month", "this_month"},
		{"tahun ini", "this_year"},
		{"this year", "this_year"},
	}

	stopwords = toSet(
		"ada", "apa", "saja", "aja", "hari", "ini", "yang", "dan", "atau", "untuk",
		"dengan", "ke", "di", "itu", "iya", "dong", "deh", "ya", "tolong", "minta",
		"info", "tentang", "berapa", "kapan", "dimana", "mana", "saya", "aku", "kamu",
		"kami", "kita", "mau", "ingin", "bisa", "bagus", "baik", "nya", "punya",
		"list", "lihat", "tampilkan", "cari", "carikan", "rekomendasi", "bulan",
		"tahun", "gimana", "bagaimana", "sih", "kah", "lagi", "sekarang", "terbaru",
		"murah", "terbaik", "populer", "terdekat", "yg", "the", "and", "for", "what",
		"with", "how", "are", "any", "about", "from", "this", "that", "today",
	)

	// Booking codes: two letters and at least three digits, or the TG- series.
	bookingCodePattern = regexp.MustCompile(`\b([A-Z]{2}\d{3,}|TG-[A-Z0-9]{6,})\b`)
)

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// vocabularyWords are excluded from keyword slots since they pick the domain, not the subject.
var vocabularyWords = func() map[string]struct{} {
	set := map[string]struct{}{}
	for _, list := range [][]string{privateTerms, promoTerms, tripTerms, scheduleTerms, facetTerms, articleTerms} {
		for _, term := range list {
			set[term] = struct{}{}
		}
	}
	return set
}()
