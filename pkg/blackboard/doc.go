// Package blackboard provides the shared key/value context that simulation
// models use to exchange data without holding references to each other.
//
// Values are stored together with their dynamic type. Typed reads check the
// requested type against the stored value and fail explicitly on mismatch:
//
//	sc := blackboard.New()
//	_ = sc.Set("wind.speed", 12.5)
//
//	speed, err := blackboard.Get[float64](sc, "wind.speed")
//	if err != nil {
//	    return err
//	}
//
// All operations are safe for concurrent use by models running in the same
// execution level.
package blackboard
