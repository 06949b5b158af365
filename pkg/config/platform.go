// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

// NaturalChannels are the organic traffic channels every platform shares.
var NaturalChannels = []string{"搜索", "推荐", "直接访问", "活动页", "店铺首页"}

// PaidChannels maps a platform to its paid promotion channels.
var PaidChannels = map[string][]string{
	"京东":  {"京东快车", "京东展位", "京准通", "品牌特秀"},
	"天猫":  {"直通车", "钻展", "超级推荐", "品牌特秀"},
	"抖音":  {"巨量千川", "抖音小店随心推", "DOU+", "品牌广告"},
	"快手":  {"磁力金牛", "快手粉条", "快手小店推广", "品牌广告"},
	"微信":  {"朋友圈广告", "公众号广告", "小程序广告", "视频号推广"},
	"小红书": {"信息流广告", "搜索广告", "薯条", "品牌合作"},
	"拼多多": {"多多搜索", "多多场景", "多多进宝", "品牌推广"},
}

// DefaultPaidChannel is used for platforms without a channel table.
const DefaultPaidChannel = "通用推广"

// PlatformFeature captures per-platform commercial characteristics.
type PlatformFeature struct {
	Type           string
	UserGroup      string
	AvgOrderValue  float64
	ConversionRate float64
}

// PlatformFeatures describes each supported platform.
var PlatformFeatures = map[string]PlatformFeature{
	"京东":  {Type: "综合电商", UserGroup: "中高端用户", AvgOrderValue: 500, ConversionRate: 0.05},
	"天猫":  {Type: "综合电商", UserGroup: "品质用户", AvgOrderValue: 450, ConversionRate: 0.048},
	"抖音":  {Type: "内容电商", UserGroup: "年轻用户", AvgOrderValue: 300, ConversionRate: 0.06},
	"快手":  {Type: "内容电商", UserGroup: "下沉市场", AvgOrderValue: 250, ConversionRate: 0.055},
	"微信":  {Type: "社交电商", UserGroup: "熟人社交", AvgOrderValue: 350, ConversionRate: 0.07},
	"小红书": {Type: "种草电商", UserGroup: "女性用户", AvgOrderValue: 400, ConversionRate: 0.045},
	"拼多多": {Type: "社交电商", UserGroup: "价格敏感", AvgOrderValue: 200, ConversionRate: 0.08},
}

// PaidChannelsFor returns the paid channels for a platform, falling back
// to the generic channel.
func PaidChannelsFor(platform string) []string {
	if ch, ok := PaidChannels[platform]; ok {
		return ch
	}
	return []string{DefaultPaidChannel}
}

// PlatformFeatureFor returns a platform's features with a generic fallback.
func PlatformFeatureFor(platform string) PlatformFeature {
	if f, ok := PlatformFeatures[platform]; ok {
		return f
	}
	return PlatformFeature{Type: "综合电商", UserGroup: "通用用户", AvgOrderValue: 350, ConversionRate: 0.05}
}
