package intel

// Goal is the immutable scope of one orchestration run, set once by the
// orchestrator_goal event.
type Goal struct {
	Cities        []string `json:"cities"`
	QualityTarget int      `json:"qualityTarget"`
	MaxIterations int      `json:"maxIterations"`
}
