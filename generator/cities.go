package generator

import "strings"

// Cities is the fixed set of places transfers are drawn between.
var Cities = []string{
	"Ayr", "Aberdeen", "Perth", "Dundee", "Middlesbrough", "Coventry", "Bath",
	"Exeter", "Cambridge", "Kingston upon Hull", "Londonderry", "Lisburn",
	"Penzance", "York", "Blackpool", "Dumfries", "Scarborough", "Plymouth",
	"Ipswich", "Norwich", "Brighton", "Kirkwall", "Inverness", "Oxford", "Luton",
	"Portsmouth", "Peterborough", "Nottingham", "Stoke", "Dover", "Edinburgh",
	"Newcastle", "Liverpool", "Cardiff", "Wick", "Leeds", "Lerwick", "Manchester",
	"Birmingham", "Belfast", "Glasgow", "London",
}

// canonical returns the spelling used in cities for name, or name itself
// when it is not one of them.
func canonical(cities []string, name string) string {
	for _, c := range cities {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	return name
}
