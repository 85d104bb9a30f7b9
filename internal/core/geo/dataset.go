package geo

import "github.com/dep2p/go-hypergrid/pkg/types"

var regions = []Region{
	{Code: "NA", Name: "North America", Centroid: types.Coordinates{Lat: 40.0, Lon: -95.0}, NoiseMs: 2.0, LossRate: 0.001},
	{Code: "EU", Name: "Europe", Centroid: types.Coordinates{Lat: 50.0, Lon: 10.0}, NoiseMs: 1.8, LossRate: 0.001},
	{Code: "AS", Name: "Asia", Centroid: types.Coordinates{Lat: 25.0, Lon: 110.0}, NoiseMs: 3.5, LossRate: 0.003},
	{Code: "SA", Name: "South America", Centroid: types.Coordinates{Lat: -15.0, Lon: -60.0}, NoiseMs: 4.5, LossRate: 0.004},
	{Code: "AF", Name: "Africa", Centroid: types.Coordinates{Lat: 2.0, Lon: 20.0}, NoiseMs: 6.0, LossRate: 0.008},
	{Code: "OC", Name: "Oceania", Centroid: types.Coordinates{Lat: -30.0, Lon: 145.0}, NoiseMs: 3.0, LossRate: 0.002},
	{Code: "ME", Name: "Middle East", Centroid: types.Coordinates{Lat: 28.0, Lon: 45.0}, NoiseMs: 4.0, LossRate: 0.004},
}

func c(name, country, region string, lat, lon float64, tier int, weight float64) City {
	return City{
		Name:    name,
		Country: country,
		Region:  region,
		Coord:   types.Coordinates{Lat: lat, Lon: lon},
		Tier:    tier,
		Weight:  weight,
	}
}

var cities = []City{
	// NA
	c("New York", "US", "NA", 40.71, -74.01, 1, 8.4),
	c("Los Angeles", "US", "NA", 34.05, -118.24, 1, 4.0),
	c("Chicago", "US", "NA", 41.88, -87.63, 1, 2.7),
	c("Toronto", "CA", "NA", 43.65, -79.38, 1, 2.9),
	c("Dallas", "US", "NA", 32.78, -96.80, 2, 1.3),
	c("Miami", "US", "NA", 25.76, -80.19, 2, 0.5),
	c("Seattle", "US", "NA", 47.61, -122.33, 2, 0.75),
	c("Montreal", "CA", "NA", 45.50, -73.57, 2, 1.8),
	c("Mexico City", "MX", "NA", 19.43, -99.13, 2, 9.2),
	c("Denver", "US", "NA", 39.74, -104.99, 3, 0.7),
	// EU
	c("London", "GB", "EU", 51.51, -0.13, 1, 9.0),
	c("Frankfurt", "DE", "EU", 50.11, 8.68, 1, 0.75),
	c("Amsterdam", "NL", "EU", 52.37, 4.90, 1, 0.9),
	c("Paris", "FR", "EU", 48.86, 2.35, 1, 2.1),
	c("Stockholm", "SE", "EU", 59.33, 18.07, 2, 0.98),
	c("Madrid", "ES", "EU", 40.42, -3.70, 2, 3.3),
	c("Warsaw", "PL", "EU", 52.23, 21.01, 2, 1.8),
	c("Milan", "IT", "EU", 45.46, 9.19, 2, 1.4),
	c("Dublin", "IE", "EU", 53.35, -6.26, 3, 0.55),
	// AS
	c("Tokyo", "JP", "AS", 35.68, 139.69, 1, 14.0),
	c("Singapore", "SG", "AS", 1.35, 103.82, 1, 5.7),
	c("Hong Kong", "HK", "AS", 22.32, 114.17, 1, 7.5),
	c("Seoul", "KR", "AS", 37.57, 126.98, 1, 9.7),
	c("Mumbai", "IN", "AS", 19.08, 72.88, 2, 20.0),
	c("Shanghai", "CN", "AS", 31.23, 121.47, 2, 24.0),
	c("Taipei", "TW", "AS", 25.03, 121.57, 2, 2.6),
	c("Jakarta", "ID", "AS", -6.21, 106.85, 2, 10.5),
	c("Bangkok", "TH", "AS", 13.76, 100.50, 3, 10.5),
	// SA
	c("Sao Paulo", "BR", "SA", -23.55, -46.63, 1, 12.0),
	c("Rio de Janeiro", "BR", "SA", -22.91, -43.17, 2, 6.7),
	c("Buenos Aires", "AR", "SA", -34.60, -58.38, 2, 3.0),
	c("Santiago", "CL", "SA", -33.45, -70.67, 2, 6.0),
	c("Bogota", "CO", "SA", 4.71, -74.07, 2, 7.4),
	c("Lima", "PE", "SA", -12.05, -77.04, 3, 9.7),
	// AF
	c("Johannesburg", "ZA", "AF", -26.20, 28.05, 1, 5.6),
	c("Lagos", "NG", "AF", 6.52, 3.38, 2, 15.0),
	c("Nairobi", "KE", "AF", -1.29, 36.82, 2, 4.4),
	c("Cairo", "EG", "AF", 30.04, 31.24, 2, 10.0),
	c("Cape Town", "ZA", "AF", -33.92, 18.42, 2, 4.6),
	c("Casablanca", "MA", "AF", 33.57, -7.59, 3, 3.4),
	// OC
	c("Sydney", "AU", "OC", -33.87, 151.21, 1, 5.3),
	c("Melbourne", "AU", "OC", -37.81, 144.96, 1, 5.0),
	c("Auckland", "NZ", "OC", -36.85, 174.76, 2, 1.7),
	c("Perth", "AU", "OC", -31.95, 115.86, 2, 2.1),
	c("Brisbane", "AU", "OC", -27.47, 153.03, 3, 2.5),
	// ME
	c("Dubai", "AE", "ME", 25.20, 55.27, 1, 3.3),
	c("Tel Aviv", "IL", "ME", 32.09, 34.78, 1, 0.46),
	c("Istanbul", "TR", "ME", 41.01, 28.98, 1, 15.5),
	c("Riyadh", "SA", "ME", 24.71, 46.68, 2, 7.6),
	c("Doha", "QA", "ME", 25.29, 51.53, 2, 2.4),
	c("Tehran", "IR", "ME", 35.69, 51.39, 3, 8.7),
}

var allRegions = []string{"NA", "EU", "AS", "SA", "AF", "OC", "ME"}

var asns = []ASN{
	// tier1
	{Number: 3356, ISP: "Lumen", Class: ClassTier1, Regions: []string{"NA", "EU", "SA"}, CeilingMbps: 100000, Reliability: 0.995, Weight: 3},
	{Number: 1299, ISP: "Arelion", Class: ClassTier1, Regions: []string{"NA", "EU", "AS"}, CeilingMbps: 100000, Reliability: 0.995, Weight: 2},
	{Number: 2914, ISP: "NTT", Class: ClassTier1, Regions: []string{"NA", "EU", "AS", "OC"}, CeilingMbps: 100000, Reliability: 0.995, Weight: 2},
	{Number: 174, ISP: "Cogent", Class: ClassTier1, Regions: allRegions, CeilingMbps: 40000, Reliability: 0.99, Weight: 2},
	{Number: 6453, ISP: "TATA", Class: ClassTier1, Regions: []string{"NA", "EU", "AS", "AF", "ME"}, CeilingMbps: 40000, Reliability: 0.99, Weight: 1.5},
	// transit
	{Number: 3257, ISP: "GTT", Class: ClassTransit, Regions: []string{"NA", "EU"}, CeilingMbps: 40000, Reliability: 0.985, Weight: 1},
	{Number: 4637, ISP: "Telstra Global", Class: ClassTransit, Regions: []string{"AS", "OC"}, CeilingMbps: 40000, Reliability: 0.985, Weight: 1.5},
	{Number: 5511, ISP: "Orange", Class: ClassTransit, Regions: []string{"EU", "AF", "ME"}, CeilingMbps: 40000, Reliability: 0.985, Weight: 1.5},
	{Number: 37100, ISP: "SEACOM", Class: ClassTransit, Regions: []string{"AF"}, CeilingMbps: 20000, Reliability: 0.97, Weight: 2},
	{Number: 8452, ISP: "TE Data", Class: ClassTransit, Regions: []string{"AF", "ME"}, CeilingMbps: 20000, Reliability: 0.97, Weight: 1},
	// hosting
	{Number: 16509, ISP: "Amazon", Class: ClassHosting, Regions: allRegions, CeilingMbps: 25000, Reliability: 0.998, Weight: 5},
	{Number: 15169, ISP: "Google", Class: ClassHosting, Regions: allRegions, CeilingMbps: 25000, Reliability: 0.998, Weight: 4},
	{Number: 13335, ISP: "Cloudflare", Class: ClassHosting, Regions: allRegions, CeilingMbps: 25000, Reliability: 0.997, Weight: 3},
	{Number: 14061, ISP: "DigitalOcean", Class: ClassHosting, Regions: []string{"NA", "EU", "AS"}, CeilingMbps: 10000, Reliability: 0.99, Weight: 2},
	{Number: 24940, ISP: "Hetzner", Class: ClassHosting, Regions: []string{"EU"}, CeilingMbps: 10000, Reliability: 0.99, Weight: 2},
	{Number: 16276, ISP: "OVH", Class: ClassHosting, Regions: []string{"EU", "NA", "AS", "OC"}, CeilingMbps: 10000, Reliability: 0.985, Weight: 2},
	{Number: 20473, ISP: "Vultr", Class: ClassHosting, Regions: []string{"NA", "EU", "AS", "OC", "SA", "AF"}, CeilingMbps: 10000, Reliability: 0.985, Weight: 1.5},
	// residential
	{Number: 7922, ISP: "Comcast", Class: ClassResidential, Regions: []string{"NA"}, CeilingMbps: 1000, Reliability: 0.97, Weight: 4},
	{Number: 701, ISP: "Verizon", Class: ClassResidential, Regions: []string{"NA"}, CeilingMbps: 1000, Reliability: 0.97, Weight: 3},
	{Number: 3320, ISP: "Deutsche Telekom", Class: ClassResidential, Regions: []string{"EU"}, CeilingMbps: 1000, Reliability: 0.975, Weight: 3},
	{Number: 2856, ISP: "BT", Class: ClassResidential, Regions: []string{"EU"}, CeilingMbps: 900, Reliability: 0.97, Weight: 2},
	{Number: 4134, ISP: "China Telecom", Class: ClassResidential, Regions: []string{"AS"}, CeilingMbps: 1000, Reliability: 0.96, Weight: 4},
	{Number: 4766, ISP: "Korea Telecom", Class: ClassResidential, Regions: []string{"AS"}, CeilingMbps: 2500, Reliability: 0.98, Weight: 2},
	{Number: 9498, ISP: "Bharti Airtel", Class: ClassResidential, Regions: []string{"AS"}, CeilingMbps: 300, Reliability: 0.95, Weight: 3},
	{Number: 28573, ISP: "Claro", Class: ClassResidential, Regions: []string{"SA"}, CeilingMbps: 500, Reliability: 0.95, Weight: 3},
	{Number: 7303, ISP: "Telecom Argentina", Class: ClassResidential, Regions: []string{"SA"}, CeilingMbps: 300, Reliability: 0.94, Weight: 2},
	{Number: 1221, ISP: "Telstra", Class: ClassResidential, Regions: []string{"OC"}, CeilingMbps: 1000, Reliability: 0.97, Weight: 3},
	{Number: 5384, ISP: "Etisalat", Class: ClassResidential, Regions: []string{"ME"}, CeilingMbps: 1000, Reliability: 0.97, Weight: 2},
	{Number: 36935, ISP: "MTN", Class: ClassResidential, Regions: []string{"AF"}, CeilingMbps: 200, Reliability: 0.93, Weight: 3},
	// mobile
	{Number: 21928, ISP: "T-Mobile", Class: ClassMobile, Regions: []string{"NA"}, CeilingMbps: 300, Reliability: 0.95, Weight: 2},
	{Number: 3209, ISP: "Vodafone", Class: ClassMobile, Regions: []string{"EU"}, CeilingMbps: 300, Reliability: 0.95, Weight: 2},
	{Number: 29975, ISP: "Vodacom", Class: ClassMobile, Regions: []string{"AF"}, CeilingMbps: 150, Reliability: 0.92, Weight: 2},
	{Number: 26599, ISP: "TIM Brasil", Class: ClassMobile, Regions: []string{"SA"}, CeilingMbps: 150, Reliability: 0.93, Weight: 1.5},
	{Number: 45609, ISP: "Airtel Mobile", Class: ClassMobile, Regions: []string{"AS"}, CeilingMbps: 150, Reliability: 0.93, Weight: 2},
	{Number: 39891, ISP: "STC", Class: ClassMobile, Regions: []string{"ME"}, CeilingMbps: 300, Reliability: 0.95, Weight: 2},
	{Number: 9790, ISP: "One NZ", Class: ClassMobile, Regions: []string{"OC"}, CeilingMbps: 200, Reliability: 0.95, Weight: 1},
}
