package identifier

import "hash/fnv"

var fleetCompanies = []string{
	"Acme Logistics",
	"Northstar Utilities",
	"Pioneer Construction",
	"Summit Energy",
	"Atlas Freight Co",
	"Riverside Municipal Services",
	"Global Services Group",
	"Vertex Communications",
	"Crescent Building Corp",
	"Evergreen Landscaping",
	"Redwood Telecom",
	"BlueSky Maintenance",
	"Titan Industrial",
	"Frontier Field Services",
	"Liberty Waste Management",
	"Keystone Infrastructure",
	"Sequoia Electric",
	"Harbor City Transit",
	"Cobalt Mining & Materials",
	"Prairie Agricultural Supply",
}

var fleetSuffixes = []string{"LLC", "Inc", "Corp", "Ltd", "PLC"}

// BuyerName returns the fleet buyer name for index i.
func BuyerName(i int) string {
	if i < 0 {
		i = -i
	}
	return fleetCompanies[i%len(fleetCompanies)] + " " + fleetSuffixes[i%len(fleetSuffixes)]
}

// BuyerNameFor picks a stable fleet buyer name for key.
func BuyerNameFor(key string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return BuyerName(int(h.Sum32() % 100))
}
