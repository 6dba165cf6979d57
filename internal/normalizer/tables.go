package normalizer

import (
	"net/url"
	"strings"

	"ThreatScanner/internal/domain"
)

// KeywordSet pairs a label with the keywords that select it.
type KeywordSet[T any] struct {
	Label    T
	Keywords []string
}

// CategoryOrder is the fixed priority of category detection; the first set that matches wins.
var CategoryOrder = []KeywordSet[domain.Category]{
	{domain.CategoryCyber, []string{
		"ransomware", "malware", "cyberattack", "cyber attack", "cyber-attack", "data breach",
		"hacker", "hackers", "hacked", "phishing", "zero-day", "exploit", "ddos", "botnet",
		"cve-", "spyware", "backdoor", "cybersecurity",
	}},
	{domain.CategoryHealth, []string{
		"pandemic", "epidemic", "outbreak", "virus", "disease", "infection", "vaccine",
		"hospital", "cholera", "ebola", "measles", "influenza", "bird flu", "avian flu", "mpox",
		"pathogen",
	}},
	{domain.CategoryNatural, []string{
		"earthquake", "tsunami", "volcano", "eruption", "hurricane", "typhoon", "cyclone",
		"tornado", "landslide", "seismic", "aftershock",
	}},
	{domain.CategoryClimate, []string{
		"climate", "wildfire", "drought", "heatwave", "heat wave", "flood", "flooding",
		"emissions", "glacier", "sea level", "el nino", "carbon",
	}},
	{domain.CategoryConflict, []string{
		"war", "missile", "airstrike", "air strike", "invasion", "troops", "military",
		"ceasefire", "insurgents", "militia", "terrorist", "bombing", "coup", "shelling",
	}},
	{domain.CategoryEconomic, []string{
		"inflation", "recession", "market crash", "stock market", "debt default", "bankruptcy",
		"unemployment", "tariff", "tariffs", "currency", "bank run", "supply chain", "economy",
	}},
	{domain.CategoryAI, []string{
		"artificial intelligence", "deepfake", "ai model", "machine learning", "chatbot",
		"llm", "generative ai", "ai",
	}},
	{domain.CategoryIntelligence, []string{
		"espionage", "intelligence agency", "surveillance", "disinformation", "propaganda",
		"classified", "spy",
	}},
	{domain.CategoryNews, []string{
		"breaking news", "press release", "headline",
	}},
}

// SeverityTier is one weighted keyword tier of the severity heuristic.
type SeverityTier struct {
	Name     string
	Weight   int
	Keywords []string
}

// BaseSeverity is the score every record starts from.
const BaseSeverity = 20

// SeverityTiers is evaluated in full; each distinct matching keyword adds the tier weight.
var SeverityTiers = []SeverityTier{
	{"critical", 25, []string{
		"catastrophic", "ransomware", "pandemic", "nuclear", "mass casualty", "zero-day",
		"tsunami", "martial law", "invasion", "meltdown", "genocide", "state of emergency",
	}},
	{"high", 15, []string{
		"outbreak", "attack", "explosion", "killed", "deaths", "breach", "exploit",
		"evacuation", "emergency", "missile", "collapse", "wildfire", "hurricane", "earthquake",
	}},
	{"medium", 10, []string{
		"warning", "threat", "vulnerability", "protest", "flood", "shortage", "disruption",
		"spreading", "sanctions", "malware", "crisis", "strike",
	}},
	{"low", 5, []string{
		"concern", "risk", "monitor", "advisory", "minor", "potential", "investigation",
		"update",
	}},
}

// MagnitudeStep maps a minimum seismic magnitude onto a fixed severity.
type MagnitudeStep struct {
	Min      float64
	Severity int
}

// MagnitudeSteps is ordered from the strongest step down.
var MagnitudeSteps = []MagnitudeStep{
	{7.0, 90},
	{6.0, 75},
	{5.0, 60},
	{4.0, 45},
}

// MagnitudeFloorSeverity applies below the weakest step.
const MagnitudeFloorSeverity = 30

// Engagement bonus thresholds for social items.
const (
	EngagementScoreThreshold   = 1000
	EngagementScoreBonus       = 10
	EngagementRepliesThreshold = 100
	EngagementRepliesBonus     = 5
)

// RegionOrder is scanned in order; the first region with a matching keyword wins.
var RegionOrder = []KeywordSet[string]{
	{"Middle East", []string{
		"middle east", "israel", "gaza", "iran", "iraq", "syria", "yemen", "lebanon", "saudi",
		"jordan", "qatar",
	}},
	{"Europe", []string{
		"europe", "european", "ukraine", "russia", "germany", "france", "britain", "uk",
		"poland", "italy", "spain", "greece", "turkey",
	}},
	{"Asia", []string{
		"asia", "china", "japan", "india", "korea", "taiwan", "pakistan", "philippines",
		"indonesia", "vietnam", "bangladesh", "myanmar",
	}},
	{"Africa", []string{
		"africa", "nigeria", "sudan", "ethiopia", "congo", "kenya", "somalia", "sahel",
		"egypt", "libya",
	}},
	{"North America", []string{
		"north america", "united states", "u.s.", "usa", "canada", "mexico", "california",
		"texas", "alaska", "washington",
	}},
	{"South America", []string{
		"south america", "latin america", "brazil", "argentina", "chile", "peru", "colombia",
		"venezuela", "ecuador",
	}},
	{"Oceania", []string{
		"oceania", "australia", "new zealand", "fiji", "papua", "tonga",
	}},
}

// DefaultTag is assigned when no tag keyword matches.
const DefaultTag = "intelligence"

// TagTable may assign several tags to one record.
var TagTable = []KeywordSet[string]{
	{"ransomware", []string{"ransomware"}},
	{"malware", []string{"malware", "trojan", "spyware", "botnet"}},
	{"phishing", []string{"phishing"}},
	{"vulnerability", []string{"vulnerability", "cve-", "zero-day", "exploit"}},
	{"data-breach", []string{"data breach", "breach", "leaked"}},
	{"outbreak", []string{"outbreak", "epidemic", "pandemic"}},
	{"earthquake", []string{"earthquake", "seismic", "aftershock"}},
	{"wildfire", []string{"wildfire", "bushfire"}},
	{"flood", []string{"flood", "flooding"}},
	{"storm", []string{"hurricane", "typhoon", "cyclone", "tornado"}},
	{"conflict", []string{"war", "missile", "airstrike", "troops", "shelling"}},
	{"sanctions", []string{"sanctions", "embargo"}},
	{"inflation", []string{"inflation", "recession"}},
	{"deepfake", []string{"deepfake"}},
	{"disinformation", []string{"disinformation", "propaganda", "misinformation"}},
	{"infrastructure", []string{"power grid", "pipeline", "hospital", "water supply", "blackout"}},
}

// OffTopicKeywords reject a record in the relevance filter.
var OffTopicKeywords = []string{
	"sports", "football", "soccer", "celebrity", "celebrities", "entertainment",
	"box office", "horoscope", "recipe", "fashion week", "red carpet",
}

// CommunityCategories maps social community names (lowercase) onto a category hint.
var CommunityCategories = map[string]domain.Category{
	"cybersecurity":   domain.CategoryCyber,
	"netsec":          domain.CategoryCyber,
	"blueteamsec":     domain.CategoryCyber,
	"malware":         domain.CategoryCyber,
	"worldnews":       domain.CategoryConflict,
	"geopolitics":     domain.CategoryConflict,
	"ukraine":         domain.CategoryConflict,
	"collapse":        domain.CategoryClimate,
	"climate":         domain.CategoryClimate,
	"climatechange":   domain.CategoryClimate,
	"economics":       domain.CategoryEconomic,
	"economy":         domain.CategoryEconomic,
	"health":          domain.CategoryHealth,
	"publichealth":    domain.CategoryHealth,
	"coronavirus":     domain.CategoryHealth,
	"earthquakes":     domain.CategoryNatural,
	"tropicalweather": domain.CategoryNatural,
	"artificial":      domain.CategoryAI,
	"machinelearning": domain.CategoryAI,
	"osint":           domain.CategoryIntelligence,
	"news":            domain.CategoryNews,
}

// CommunityCategory looks a community up in CommunityCategories, returning General when unknown.
func CommunityCategory(community string) domain.Category {
	name := strings.ToLower(strings.TrimSpace(community))
	name = strings.TrimPrefix(name, "r/")
	if cat, ok := CommunityCategories[name]; ok {
		return cat
	}
	return domain.CategoryGeneral
}

// CredibleDomains lists institutional and press domains; subdomains count too.
var CredibleDomains = []string{
	"reuters.com", "apnews.com", "bbc.co.uk", "bbc.com", "aljazeera.com", "theguardian.com",
	"nytimes.com", "washingtonpost.com", "ft.com", "bloomberg.com", "npr.org",
	"who.int", "cdc.gov", "ecdc.europa.eu", "un.org", "reliefweb.int", "unhcr.org",
	"cisa.gov", "nist.gov", "ncsc.gov.uk", "enisa.europa.eu", "cert.europa.eu",
	"usgs.gov", "noaa.gov", "nasa.gov", "nhc.noaa.gov", "gdacs.org", "wmo.int",
	"imf.org", "worldbank.org", "federalreserve.gov", "ecb.europa.eu",
}

// IsCredibleSource reports whether the source URL's host belongs to CredibleDomains.
func IsCredibleSource(source string) bool {
	host := source
	if u, err := url.Parse(source); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	if host == "" {
		return false
	}
	for _, d := range CredibleDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
