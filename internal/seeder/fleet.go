package seeder

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/upfit/internal/entity"
	"github.com/Additional-Code/upfit/internal/identifier"
	"github.com/Additional-Code/upfit/internal/lifecycle"
	orderstore "github.com/Additional-Code/upfit/internal/store/order"
)

const day = 24 * time.Hour

// Fixture is one demo order and the state it should be driven to.
type Fixture struct {
	Input     orderstore.CreateInput
	Status    lifecycle.Status
	Inventory string
	BuyerName string
	Website   string
	// DeliveryEta is applied once the lifecycle has been replayed.
	DeliveryEta *time.Time
}

type bodyType struct {
	name          string
	chassis       []string
	manufacturers []string
}

var upfitters = []entity.UpfitterRef{
	{ID: "knapheide-detroit", Name: "Knapheide Detroit"},
	{ID: "reading-chicago", Name: "Reading Truck Body - Chicago"},
	{ID: "jerr-dan-atlanta", Name: "Jerr-Dan Towing - Atlanta"},
	{ID: "altec-dallas", Name: "Altec Industries - Dallas"},
	{ID: "morgan-phoenix", Name: "Morgan Truck Body - Phoenix"},
	{ID: "rugby-denver", Name: "Rugby Manufacturing - Denver"},
	{ID: "supreme-seattle", Name: "Supreme Corporation - Seattle"},
	{ID: "stahl-miami", Name: "Stahl Bodies - Miami"},
	{ID: "duramag-portland", Name: "Duramag - Portland"},
	{ID: "versalift-houston", Name: "Versalift - Houston"},
	{ID: "auto-truck-boston", Name: "Auto Truck Group - Boston"},
	{ID: "miller-nashville", Name: "Miller Industries - Nashville"},
	{ID: "royal-kansas", Name: "Royal Truck Body - Kansas City"},
	{ID: "henderson-salt-lake", Name: "Henderson Products - Salt Lake City"},
	{ID: "rockport-columbus", Name: "Rockport - Columbus"},
}

const dealerCount = 40

var bodyTypes = []bodyType{
	{"Service Body", []string{"F-350", "F-450", "F-550"}, []string{"Knapheide", "Royal Truck Body", "Duramag", "Reading Truck"}},
	{"Flatbed", []string{"F-350", "F-450", "F-550", "F-600"}, []string{"Rugby Manufacturing", "PJ's Truck Bodies", "Duramag", "SH Truck Bodies"}},
	{"Dump Body", []string{"F-350", "F-450", "F-550", "F-600"}, []string{"Rugby Manufacturing", "Godwin Group", "Brandon Manufacturing", "Downeaster"}},
	{"Dry Freight Body", []string{"E-350", "E-450", "F-450", "F-550", "F-600", "F-650"}, []string{"Morgan Truck Body", "Rockport", "Reading Truck", "Wabash"}},
	{"Refrigerated Body", []string{"E-450", "F-450", "F-550", "F-600", "F-650"}, []string{"Morgan Truck Body", "Rockport", "Great Dane Johnson", "Wabash"}},
	{"Tow & Recovery", []string{"F-450", "F-550", "F-600"}, []string{"Jerr-Dan", "Miller Industries", "Dynamic Towing", "Chevron"}},
	{"Ambulance", []string{"E-450", "F-450", "F-550"}, []string{"Wheeled Coach", "Braun Industries", "Horton Emergency Vehicles", "AEV"}},
	{"Bucket", []string{"F-550", "F-600", "F-650", "F-750"}, []string{"Altec", "Versalift", "Terex Utilities", "Dur-A-Lift"}},
	{"Contractor Body", []string{"F-350", "F-450", "F-550", "F-600"}, []string{"Knapheide", "Royal Truck Body", "Scelzi", "Duramag"}},
	{"Box w/ Lift Gate", []string{"F-450", "F-550", "F-600", "F-650"}, []string{"Morgan Truck Body", "Wabash", "Rockport", "Complete Truck Bodies"}},
}

var (
	series      = []string{"E-350", "E-450", "F-350", "F-450", "F-550", "F-600", "F-650", "F-750"}
	cabs        = []string{"Regular Cab", "SuperCab", "Crew Cab"}
	powertrains = []string{"gas-7.3L", "diesel-6.7L"}
)

var gvwrBySeries = map[string]string{
	"E-350": "12050",
	"E-450": "14500",
	"F-350": "14000",
	"F-450": "16500",
	"F-550": "19500",
	"F-600": "22000",
	"F-650": "26000",
	"F-750": "37000",
}

var wheelbasesBySeries = map[string][]string{
	"E-350": {"138", "158", "176"},
	"E-450": {"158", "176"},
	"F-350": {"145", "164", "176"},
	"F-450": {"164", "176", "192"},
	"F-550": {"169", "176", "192"},
	"F-600": {"169", "176", "192"},
	"F-650": {"158", "176", "190", "218"},
	"F-750": {"176", "190", "218", "254"},
}

// BuildFleet returns n deterministic fixtures relative to now. Fixture i is
// created 14+i days before now, so the last fixture is the oldest.
func BuildFleet(n int, now time.Time) []Fixture {
	now = now.UTC()
	at := func(days int) *time.Time {
		t := now.Add(time.Duration(days) * day)
		return &t
	}
	flow := lifecycle.Flow()

	fleet := make([]Fixture, 0, n)
	for i := 0; i < n; i++ {
		s := series[i%len(series)]
		body := compatibleBody(s, i)
		up := upfitters[i%len(upfitters)]
		wheelbases := wheelbasesBySeries[s]

		build := entity.Build{
			BodyType:     body.name,
			Manufacturer: body.manufacturers[i%len(body.manufacturers)],
			Chassis: entity.Chassis{
				Series:     s,
				Cab:        cabs[i%len(cabs)],
				Drivetrain: drivetrain(s, i),
				Wheelbase:  wheelbases[i%len(wheelbases)],
				GVWR:       gvwrBySeries[s],
				Powertrain: powertrains[i%len(powertrains)],
			},
			BodySpecs: bodySpecs(body.name, i),
			Upfitter:  &entity.UpfitterRef{ID: up.ID, Name: up.Name},
		}

		offset := i % 15
		delivery := at(35 + offset)
		if i%7 == 0 {
			delivery = at(35 + offset + 7 + i%21)
		}
		if i%11 == 0 {
			delivery = at(-(i%5 + 1))
		}
		if i%9 == 3 {
			delivery = at(3 + i%4)
		}

		isStock := i%2 == 0
		f := Fixture{
			Input: orderstore.CreateInput{
				DealerCode:  fmt.Sprintf("CVC%d", 101+i%dealerCount),
				UpfitterID:  up.ID,
				Build:       build,
				Pricing:     pricing(),
				IsStock:     isStock,
				OEMEta:      at(10 + offset),
				UpfitterEta: at(20 + offset),
				DeliveryEta: delivery,
				CreatedAt:   now.Add(-time.Duration(14+i) * day),
			},
			Status:    flow[i%len(flow)],
			Inventory: entity.InventorySold,
			Website:   entity.WebsiteDraft,
		}
		if isStock {
			f.Inventory = entity.InventoryStock
		}

		// Spread the sales pipeline: sold and awaiting, recently delivered,
		// delivered a while ago.
		switch i % 6 {
		case 0:
			f.Inventory = entity.InventorySold
			if f.Status == lifecycle.Delivered {
				f.Status = lifecycle.ReadyForDelivery
			}
			f.DeliveryEta = at(10 + i%10)
		case 1:
			f.Status = lifecycle.Delivered
			f.Inventory = entity.InventorySold
			f.DeliveryEta = at(-3)
		case 2:
			f.Status = lifecycle.Delivered
			f.Inventory = entity.InventorySold
			f.DeliveryEta = at(-12)
		}

		switch i % 12 {
		case 0:
			f.Website = entity.WebsitePublished
			f.Inventory = entity.InventoryStock
		case 1:
			f.Website = entity.WebsiteUnpublished
		}

		if f.Inventory == entity.InventorySold {
			f.BuyerName = identifier.BuyerName(i)
			f.Input.BuyerName = f.BuyerName
		}
		fleet = append(fleet, f)
	}
	return fleet
}

func compatibleBody(s string, i int) bodyType {
	var compatible []bodyType
	for _, b := range bodyTypes {
		for _, c := range b.chassis {
			if c == s {
				compatible = append(compatible, b)
				break
			}
		}
	}
	if len(compatible) == 0 {
		return bodyTypes[0]
	}
	return compatible[i%len(compatible)]
}

func drivetrain(s string, i int) string {
	if strings.HasPrefix(s, "E-") {
		return "RWD"
	}
	if i%2 == 0 {
		return "4x2"
	}
	return "4x4"
}

func material(i int) string {
	if i%2 == 1 {
		return "Steel"
	}
	return "Aluminum"
}

func pick[T any](values []T, i int) T {
	return values[i%len(values)]
}

func bodySpecs(body string, i int) map[string]any {
	switch body {
	case "Flatbed":
		return map[string]any{"bedLength": pick([]int{8, 10, 12, 14, 16, 18, 20}, i), "material": material(i)}
	case "Dump Body":
		return map[string]any{
			"bedLength":  pick([]int{8, 10, 12, 14, 16}, i),
			"sideHeight": pick([]int{24, 36, 48, 60}, i),
			"hoistType":  pick([]string{"Scissor", "Telescopic", "Dual Piston"}, i),
		}
	case "Dry Freight Body":
		return map[string]any{
			"length":   pick([]int{12, 14, 16, 18, 20, 22, 24, 26}, i),
			"height":   pick([]int{84, 90, 96, 102}, i),
			"doorType": pick([]string{"Roll-up", "Swing", "Roll-up with Side Door"}, i),
		}
	case "Refrigerated Body":
		return map[string]any{
			"length":   pick([]int{12, 14, 16, 18, 20}, i),
			"height":   pick([]int{84, 90, 96}, i),
			"doorType": pick([]string{"Roll-up", "Swing"}, i),
		}
	case "Tow & Recovery":
		return map[string]any{
			"type":     pick([]string{"Rollback", "Integrated Wrecker", "Carrier"}, i),
			"capacity": pick([]string{"8T", "12T", "16T"}, i),
		}
	case "Ambulance":
		return map[string]any{
			"type":         pick([]string{"Type I", "Type II", "Type III"}, i),
			"moduleLength": pick([]int{144, 156, 168}, i),
		}
	case "Bucket":
		return map[string]any{
			"workingHeight": pick([]int{42, 47, 55}, i),
			"platform":      pick([]string{"Telescopic", "Articulating"}, i),
		}
	case "Contractor Body":
		return map[string]any{"bedLength": pick([]int{8, 9, 11, 14}, i), "material": material(i)}
	case "Service Body":
		return map[string]any{"bodyLength": pick([]int{8, 9, 11, 14}, i), "material": material(i)}
	case "Box w/ Lift Gate":
		return map[string]any{
			"boxLength":    pick([]int{12, 14, 16, 18, 20}, i),
			"liftgateType": pick([]string{"Tuckaway", "Rail Gate", "Cantilever"}, i),
		}
	default:
		return map[string]any{"length": 12, "material": "Steel"}
	}
}

func pricing() entity.Pricing {
	return entity.Pricing{
		ChassisMSRP:  decimal.NewFromInt(64000),
		BodyPrice:    decimal.NewFromInt(21000),
		OptionsPrice: decimal.NewFromInt(2500),
		Labor:        decimal.NewFromInt(3800),
		Freight:      decimal.NewFromInt(1500),
	}
}
