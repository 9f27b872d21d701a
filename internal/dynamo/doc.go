// Package dynamo provides the core types shared by the hybrid simulation
// kernel and the compiled models it executes.
//
// The package defines the contracts between the kernel and its
// collaborators:
//
//   - [Handle]: dense variable index assigned by the model compiler
//   - [Dimensions]: declared sizes of every variable class
//   - [Model]: a compiled model, bound to its [CapabilitySet] via [Bind]
//   - [EventEvaluator], [DerivativeEvaluator], [DelaySampler],
//     [AlgebraicEvaluator]: optional capabilities a model declares
//   - [Variables], [EventContext]: the views the kernel hands to a model
//   - [Failure]: structured failure (kind + locus) returned to the caller
//   - [Settings]: numeric tolerances and bounds from the settings file
//
// # Example
//
//	caps, err := dynamo.Bind(models.NewBouncingBall())
//	if err != nil {
//		return err
//	}
//	ev, ok := caps.Events()
//
// # Thread Safety
//
// Nothing in the kernel is safe for concurrent use. The integrator owns
// the single simulation goroutine and serializes every call.
package dynamo
