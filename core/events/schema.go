package events

import (
	"github.com/invopop/jsonschema"
)

// PayloadSchema reflects the JSON schema of the wire payload for a kind, or
// nil for kinds this client does not understand. Producers can use it to
// validate frames against the exact structs this package decodes.
func PayloadSchema(kind Kind) *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}

	switch kind {
	case KindConnected:
		return reflector.Reflect(connectedPayload{})
	case KindGoalSet:
		return reflector.Reflect(goalPayload{})
	case KindPlanReady:
		return reflector.Reflect(planPayload{})
	case KindAgentStarted, KindAgentProgress, KindAgentCompleted, KindAgentFailed:
		return reflector.Reflect(agentPayload{})
	case KindReflection:
		return reflector.Reflect(reflectionPayload{})
	case KindRefinementStarted:
		return reflector.Reflect(refinementPayload{})
	case KindCityCompleted:
		return reflector.Reflect(cityCompletePayload{})
	case KindAllComplete:
		return reflector.Reflect(struct{}{})
	case KindStreamError:
		return reflector.Reflect(errorPayload{})
	}
	return nil
}

// Kinds lists every event kind this client decodes.
func Kinds() []Kind {
	return []Kind{
		KindConnected,
		KindGoalSet,
		KindPlanReady,
		KindAgentStarted,
		KindAgentProgress,
		KindAgentCompleted,
		KindAgentFailed,
		KindReflection,
		KindRefinementStarted,
		KindCityCompleted,
		KindAllComplete,
		KindStreamError,
	}
}
