// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the CUE parsing shared by the configuration file,
// chain definition files and data files read by build steps.
//
// Schema-backed documents follow three steps:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with schema
//  3. Validate and decode to Go struct
//
// # Usage
//
//	//go:embed chain_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[chainFile](
//	    schemaBytes,
//	    data,
//	    "#Chain",
//	    cueutil.WithFilename("image.cue"),
//	)
//	if err != nil {
//	    return nil, err // error carries the CUE path of every problem
//	}
//	return result.Value, nil
//
// Documents without a schema are decoded to plain maps with DecodeMap.
package cueutil
