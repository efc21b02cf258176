// Package models describes joint models: named joints with a type and an
// optional range. Models are either built in ([List]) or loaded from YAML:
//
//	name: gripper
//	joints:
//	  - name: finger_left
//	    type: slide
//	    limited: true
//	    range: [0, 0.04]
//
// A model is the source of truth for the joint registry on both ends of the
// link and for the simulation engine's degrees of freedom.
package models
