package lookup

import "github.com/jmehdipour/imei-gateway/internal/model"

// SimulatedPayload is served when provider credentials are not configured.
func SimulatedPayload() model.Payload {
	return model.Payload{
		"model":     "SIMULATED: Example Model",
		"brand":     "SIMULATED",
		"simlock":   "LOCKED",
		"carrier":   "SIMULATED CARRIER",
		"blacklist": "CLEAN",
		"note":      "No API key / settings configured. This is a simulated result for testing.",
	}
}
