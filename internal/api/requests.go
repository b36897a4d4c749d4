// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package api

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/machine/internal/models"
)

// maxBodyBytes bounds request bodies read by ParseArgs.
const maxBodyBytes = 1 << 20

// Argument names shared by every resource.
const (
	argTask        = "task"
	argDatasetID   = "datasetID"
	argModelID     = "modelID"
	argFingerprint = "fingerprint"
	argLabel       = "label"
	argEpochs      = "epochs"
	argAccuracy    = "accuracy"
	argBatchSize   = "batchSize"
	argMoleculeID  = "moleculeID"
	argFittingID   = "fittingID"
	argName        = "name"
	argParameters  = "parameters"
	argBaseModel   = "baseModel"
	argSmiles      = "smiles"
	argUsername    = "username"
)

// scalarArgs are the fields read as plain strings.
var scalarArgs = []string{
	argTask, argDatasetID, argModelID, argFingerprint, argMoleculeID,
	argFittingID, argName, argBaseModel, argSmiles, argUsername,
}

// flatArgs are every single-valued field, scalar and numeric.
var flatArgs = append(append([]string{}, scalarArgs...), argEpochs, argAccuracy, argBatchSize)

// Args holds the parsed request arguments. Every field is optional; zero
// values mean the client did not send it. Handlers validate what they need.
type Args struct {
	Task        string
	DatasetID   string
	ModelID     string
	Fingerprint string
	Labels      []string
	Epochs      int
	Accuracy    float64
	BatchSize   int
	MoleculeID  string
	FittingID   string
	Name        string
	Parameters  map[string]interface{}
	BaseModel   string
	Smiles      string
	Username    string

	present map[string]bool
}

// Has reports whether the client sent the named argument.
func (a *Args) Has(name string) bool {
	return a.present[name]
}

// ParseArgs reads the argument set from a JSON object body and then from
// form and query values for anything the body did not carry. Scalar fields
// accept strings or numbers. label accepts a string, a comma-separated
// string or an array. Numeric fields that are present but malformed return
// an error wrapping models.ErrInvalidArgument.
func ParseArgs(r *http.Request) (*Args, error) {
	raw := make(map[string]interface{})

	if !isFormRequest(r) {
		body, err := readBody(r)
		if err != nil {
			return nil, err
		}
		if len(body) > 0 {
			dec := json.NewDecoder(bytes.NewReader(body))
			dec.UseNumber()
			if err := dec.Decode(&raw); err != nil {
				return nil, models.InvalidArgumentf("malformed JSON body")
			}
		}
	}

	if err := parseForm(r); err != nil {
		return nil, models.InvalidArgumentf("malformed form data")
	}

	args := &Args{present: make(map[string]bool)}
	strs := make(map[string]string, len(flatArgs))

	for _, name := range flatArgs {
		if v, ok := raw[name]; ok && v != nil {
			s, err := scalarString(name, v)
			if err != nil {
				return nil, err
			}
			strs[name] = s
			args.present[name] = true
			continue
		}
		if vals, ok := r.Form[name]; ok && len(vals) > 0 {
			strs[name] = vals[0]
			args.present[name] = true
		}
	}

	args.Task = strings.TrimSpace(strs[argTask])
	args.DatasetID = strings.TrimSpace(strs[argDatasetID])
	args.ModelID = strings.TrimSpace(strs[argModelID])
	args.Fingerprint = strings.TrimSpace(strs[argFingerprint])
	args.MoleculeID = strings.TrimSpace(strs[argMoleculeID])
	args.FittingID = strings.TrimSpace(strs[argFittingID])
	args.Name = strings.TrimSpace(strs[argName])
	args.BaseModel = strings.TrimSpace(strs[argBaseModel])
	args.Smiles = strings.TrimSpace(strs[argSmiles])
	args.Username = strings.TrimSpace(strs[argUsername])

	var err error
	if args.present[argEpochs] {
		if args.Epochs, err = parsePositiveInt(argEpochs, strs[argEpochs]); err != nil {
			return nil, err
		}
	}
	if args.present[argBatchSize] {
		if args.BatchSize, err = parsePositiveInt(argBatchSize, strs[argBatchSize]); err != nil {
			return nil, err
		}
	}
	if args.present[argAccuracy] {
		if args.Accuracy, err = parseAccuracy(strs[argAccuracy]); err != nil {
			return nil, err
		}
	}

	if v, ok := raw[argLabel]; ok && v != nil {
		if args.Labels, err = parseLabels(v); err != nil {
			return nil, err
		}
		args.present[argLabel] = true
	} else if vals, ok := r.Form[argLabel]; ok {
		for _, val := range vals {
			args.Labels = append(args.Labels, parseCommaSeparated(val)...)
		}
		args.present[argLabel] = true
	}

	if v, ok := raw[argParameters]; ok && v != nil {
		if args.Parameters, err = parseParameters(v); err != nil {
			return nil, err
		}
		args.present[argParameters] = true
	} else if vals, ok := r.Form[argParameters]; ok && len(vals) > 0 {
		if args.Parameters, err = parseParameters(vals[0]); err != nil {
			return nil, err
		}
		args.present[argParameters] = true
	}

	return args, nil
}

func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, models.InvalidArgumentf("failed to read request body")
	}
	if len(body) > maxBodyBytes {
		return nil, models.InvalidArgumentf("request body exceeds %d bytes", maxBodyBytes)
	}
	return bytes.TrimSpace(body), nil
}

func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(maxBodyBytes)
	}
	return r.ParseForm()
}

func scalarString(name string, v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", models.InvalidArgumentf("%s must be a string or number", name)
	}
}

func parsePositiveInt(name, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, models.InvalidArgumentf("%s must be a positive integer, got %q", name, s)
	}
	return n, nil
}

func parseAccuracy(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > 100 {
		return 0, models.InvalidArgumentf("accuracy must be a number between 0 and 100, got %q", s)
	}
	return f, nil
}

func parseLabels(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case string:
		return parseCommaSeparated(t), nil
	case []interface{}:
		labels := make([]string, 0, len(t))
		for i, item := range t {
			s, err := scalarString(fmt.Sprintf("label[%d]", i), item)
			if err != nil {
				return nil, err
			}
			if s = strings.TrimSpace(s); s != "" {
				labels = append(labels, s)
			}
		}
		return labels, nil
	default:
		return nil, models.InvalidArgumentf("label must be a string or an array of strings")
	}
}

func parseParameters(v interface{}) (map[string]interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		var params map[string]interface{}
		if err := json.Unmarshal([]byte(t), &params); err != nil {
			return nil, models.InvalidArgumentf("parameters must be a JSON object")
		}
		return params, nil
	default:
		return nil, models.InvalidArgumentf("parameters must be a JSON object")
	}
}
