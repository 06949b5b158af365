// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scale

// Config describes one enterprise scale tier.
type Config struct {
	Name              string
	Description       string
	DailyTrafficBase  int     // baseline daily impressions per store
	StoreCountMin     int
	StoreCountMax     int
	MonthlyGMVMin     float64
	MonthlyGMVMax     float64
	TrafficMultiplier float64
}

// Scales is the enterprise-size model. Unknown names fall back to 小型企业.
var Scales = map[string]Config{
	"微型企业": {
		Name: "微型企业", Description: "3-5家店铺，月GMV 10-50万",
		DailyTrafficBase: 500, StoreCountMin: 3, StoreCountMax: 5,
		MonthlyGMVMin: 100_000, MonthlyGMVMax: 500_000, TrafficMultiplier: 0.5,
	},
	"小型企业": {
		Name: "小型企业", Description: "6-10家店铺，月GMV 50-200万",
		DailyTrafficBase: 1500, StoreCountMin: 6, StoreCountMax: 10,
		MonthlyGMVMin: 500_000, MonthlyGMVMax: 2_000_000, TrafficMultiplier: 1.0,
	},
	"中型企业": {
		Name: "中型企业", Description: "10-20家店铺，月GMV 200-1000万",
		DailyTrafficBase: 3000, StoreCountMin: 10, StoreCountMax: 20,
		MonthlyGMVMin: 2_000_000, MonthlyGMVMax: 10_000_000, TrafficMultiplier: 2.0,
	},
	"大型企业": {
		Name: "大型企业", Description: "20-50家店铺，月GMV 1000-5000万",
		DailyTrafficBase: 8000, StoreCountMin: 20, StoreCountMax: 50,
		MonthlyGMVMin: 10_000_000, MonthlyGMVMax: 50_000_000, TrafficMultiplier: 5.0,
	},
	"超大型企业": {
		Name: "超大型企业", Description: "50+家店铺，月GMV 5000万+",
		DailyTrafficBase: 20000, StoreCountMin: 50, StoreCountMax: 100,
		MonthlyGMVMin: 50_000_000, MonthlyGMVMax: 200_000_000, TrafficMultiplier: 10.0,
	},
}

const defaultScale = "小型企业"

// Lookup returns the configuration for a scale name, defaulting to the
// small-enterprise tier for unknown names.
func Lookup(name string) Config {
	if cfg, ok := Scales[name]; ok {
		return cfg
	}
	return Scales[defaultScale]
}

// Traffic is the closed-form traffic projection for a scale.
type Traffic struct {
	TotalTraffic  int // impressions over the whole span
	DailyTraffic  int // impressions per day across all stores
	DailyPerStore int
}

// TrafficFromScale converts an enterprise-size label plus store count and
// day span into baseline traffic volumes. Pure and side-effect free.
func TrafficFromScale(scaleName string, storeCount, days int) Traffic {
	cfg := Lookup(scaleName)
	perStore := float64(cfg.DailyTrafficBase) * cfg.TrafficMultiplier
	return Traffic{
		TotalTraffic:  int(float64(storeCount) * perStore * float64(days)),
		DailyTraffic:  int(float64(storeCount) * perStore),
		DailyPerStore: int(perStore),
	}
}

// EstimateOrders projects an order count from total clicks at an average
// conversion rate.
func EstimateOrders(totalClicks int, avgCVR float64) int {
	return int(float64(totalClicks) * avgCVR)
}

// Planning assumptions used by Summary. These match the downstream report
// defaults, not any per-platform tuning.
const (
	planningCTR = 0.03
	planningCVR = 0.05
	planningAOV = 500.0
)

// Summary is the headline projection shown before a generation run.
type Summary struct {
	ScaleName        string
	Description      string
	StoreCount       int
	TimeSpanDays     int
	TotalImpressions int
	TotalClicks      int
	EstimatedOrders  int
	EstimatedGMV     float64
	MonthlyGMV       float64
	DailyTraffic     int
	DailyPerStore    int
}

// Summarize projects funnel volumes and GMV for a scale configuration.
func Summarize(scaleName string, storeCount, days int) Summary {
	cfg := Lookup(scaleName)
	traffic := TrafficFromScale(scaleName, storeCount, days)

	clicks := int(float64(traffic.TotalTraffic) * planningCTR)
	orders := EstimateOrders(clicks, planningCVR)
	gmv := float64(orders) * planningAOV

	return Summary{
		ScaleName:        scaleName,
		Description:      cfg.Description,
		StoreCount:       storeCount,
		TimeSpanDays:     days,
		TotalImpressions: traffic.TotalTraffic,
		TotalClicks:      clicks,
		EstimatedOrders:  orders,
		EstimatedGMV:     gmv,
		MonthlyGMV:       gmv / (float64(days) / 30.0),
		DailyTraffic:     traffic.DailyTraffic,
		DailyPerStore:    traffic.DailyPerStore,
	}
}
