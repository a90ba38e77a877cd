// Package networktest provides the small reference networks used across the
// test suites.
package networktest

import (
	"github.com/cognicore/velim/pkg/velim/network"
)

var tf = []string{"True", "False"}

// AlarmDefinitions is the fire alarm network: Tampering and Fire cause Alarm,
// Fire causes Smoke, Alarm causes Leaving, Leaving causes Report.
func AlarmDefinitions() []network.Definition {
	return []network.Definition{
		{Name: "Tampering", Domain: tf, Rows: []network.Row{{Probs: []float64{0.02, 0.98}}}},
		{Name: "Fire", Domain: tf, Rows: []network.Row{{Probs: []float64{0.01, 0.99}}}},
		{Name: "Alarm", Domain: tf, Parents: []string{"Tampering", "Fire"}, Rows: []network.Row{
			{Given: []string{"True", "True"}, Probs: []float64{0.5, 0.5}},
			{Given: []string{"True", "False"}, Probs: []float64{0.85, 0.15}},
			{Given: []string{"False", "True"}, Probs: []float64{0.99, 0.01}},
			{Given: []string{"False", "False"}, Probs: []float64{0.0001, 0.9999}},
		}},
		{Name: "Smoke", Domain: tf, Parents: []string{"Fire"}, Rows: []network.Row{
			{Given: []string{"True"}, Probs: []float64{0.9, 0.1}},
			{Given: []string{"False"}, Probs: []float64{0.01, 0.99}},
		}},
		{Name: "Leaving", Domain: tf, Parents: []string{"Alarm"}, Rows: []network.Row{
			{Given: []string{"True"}, Probs: []float64{0.88, 0.12}},
			{Given: []string{"False"}, Probs: []float64{0.001, 0.999}},
		}},
		{Name: "Report", Domain: tf, Parents: []string{"Leaving"}, Rows: []network.Row{
			{Given: []string{"True"}, Probs: []float64{0.75, 0.25}},
			{Given: []string{"False"}, Probs: []float64{0.01, 0.99}},
		}},
	}
}

// SurveyDefinitions is the transport survey network over A, S, E, O, R, T.
func SurveyDefinitions() []network.Definition {
	return []network.Definition{
		{Name: "A", Domain: []string{"young", "adult", "old"}, Rows: []network.Row{{Probs: []float64{0.3, 0.5, 0.2}}}},
		{Name: "S", Domain: []string{"M", "F"}, Rows: []network.Row{{Probs: []float64{0.6, 0.4}}}},
		{Name: "E", Domain: []string{"high", "uni"}, Parents: []string{"A", "S"}, Rows: []network.Row{
			{Given: []string{"young", "M"}, Probs: []float64{0.75, 0.25}},
			{Given: []string{"adult", "M"}, Probs: []float64{0.72, 0.28}},
			{Given: []string{"old", "M"}, Probs: []float64{0.88, 0.12}},
			{Given: []string{"young", "F"}, Probs: []float64{0.64, 0.36}},
			{Given: []string{"adult", "F"}, Probs: []float64{0.70, 0.30}},
			{Given: []string{"old", "F"}, Probs: []float64{0.90, 0.10}},
		}},
		{Name: "O", Domain: []string{"emp", "self"}, Parents: []string{"E"}, Rows: []network.Row{
			{Given: []string{"high"}, Probs: []float64{0.96, 0.04}},
			{Given: []string{"uni"}, Probs: []float64{0.92, 0.08}},
		}},
		{Name: "R", Domain: []string{"small", "big"}, Parents: []string{"E"}, Rows: []network.Row{
			{Given: []string{"high"}, Probs: []float64{0.25, 0.75}},
			{Given: []string{"uni"}, Probs: []float64{0.20, 0.80}},
		}},
		{Name: "T", Domain: []string{"car", "train", "other"}, Parents: []string{"O", "R"}, Rows: []network.Row{
			{Given: []string{"emp", "small"}, Probs: []float64{0.48, 0.42, 0.10}},
			{Given: []string{"self", "small"}, Probs: []float64{0.56, 0.36, 0.08}},
			{Given: []string{"emp", "big"}, Probs: []float64{0.58, 0.24, 0.18}},
			{Given: []string{"self", "big"}, Probs: []float64{0.70, 0.21, 0.09}},
		}},
	}
}

// EarthquakeDefinitions is the burglary/earthquake alarm network.
func EarthquakeDefinitions() []network.Definition {
	return []network.Definition{
		{Name: "Burglary", Domain: tf, Rows: []network.Row{{Probs: []float64{0.01, 0.99}}}},
		{Name: "Earthquake", Domain: tf, Rows: []network.Row{{Probs: []float64{0.02, 0.98}}}},
		{Name: "Alarm", Domain: tf, Parents: []string{"Burglary", "Earthquake"}, Rows: []network.Row{
			{Given: []string{"True", "True"}, Probs: []float64{0.95, 0.05}},
			{Given: []string{"False", "True"}, Probs: []float64{0.29, 0.71}},
			{Given: []string{"True", "False"}, Probs: []float64{0.94, 0.06}},
			{Given: []string{"False", "False"}, Probs: []float64{0.001, 0.999}},
		}},
		{Name: "JohnCalls", Domain: tf, Parents: []string{"Alarm"}, Rows: []network.Row{
			{Given: []string{"True"}, Probs: []float64{0.9, 0.1}},
			{Given: []string{"False"}, Probs: []float64{0.05, 0.95}},
		}},
		{Name: "MaryCalls", Domain: tf, Parents: []string{"Alarm"}, Rows: []network.Row{
			{Given: []string{"True"}, Probs: []float64{0.7, 0.3}},
			{Given: []string{"False"}, Probs: []float64{0.01, 0.99}},
		}},
	}
}

// Alarm builds the fire alarm network.
func Alarm() *network.Network { return must(network.New("alarm", AlarmDefinitions())) }

// Survey builds the survey network.
func Survey() *network.Network { return must(network.New("survey", SurveyDefinitions())) }

// Earthquake builds the earthquake network.
func Earthquake() *network.Network { return must(network.New("earthquake", EarthquakeDefinitions())) }

func must(n *network.Network, err error) *network.Network {
	if err != nil {
		panic(err)
	}
	return n
}
