package markup

import "strings"

type frameworkSignature struct {
	name    string
	markers []string
}

// frameworkSignatures is checked in order; the first framework with any
// marker present wins.
var frameworkSignatures = []frameworkSignature{
	{name: "React", markers: []string{"_react", "ReactDOM", "data-reactroot"}},
	{name: "Vue.js", markers: []string{"vue.js", "__vue__", "data-v-"}},
	{name: "Angular", markers: []string{"ng-", "angular.js", "ng-app"}},
	{name: "A-Frame", markers: []string{"a-scene", "aframe.js", "aframe-"}},
	{name: "Phaser.js", markers: []string{"phaser.js", "Phaser.Game", "phaser-"}},
}

// DetectFramework returns the front-end framework whose signature appears in
// text, if any.
func DetectFramework(text string) (string, bool) {
	for _, sig := range frameworkSignatures {
		for _, marker := range sig.markers {
			if strings.Contains(text, marker) {
				return sig.name, true
			}
		}
	}
	return "", false
}
