package actions

import (
	"encoding/json"
	"fmt"
)

// NavigateRequest is the body of POST /navigate.
type NavigateRequest struct {
	URL string `json:"url"`
}

// ActRequest is the body of POST /act.
type ActRequest struct {
	Action string `json:"action"`
	// Iframes defaults to true when omitted.
	Iframes   *bool             `json:"iframes,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
	FilePath  FilePaths         `json:"filePath,omitempty"`
}

// ExtractRequest is the body of POST /extract.
type ExtractRequest struct {
	Instruction string `json:"instruction"`
	Iframes     *bool  `json:"iframes,omitempty"`
}

// ConvertRequest is the body of POST /convert-svg.
type ConvertRequest struct {
	SVGFilePath string `json:"svg_file_path"`
	// OutputPath, when set, also writes the image to disk (.png or .pdf).
	OutputPath string `json:"output_path,omitempty"`
}

// FilePaths accepts either a single path or a list of paths.
type FilePaths []string

// UnmarshalJSON implements json.Unmarshaler.
func (p *FilePaths) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*p = nil
		} else {
			*p = FilePaths{single}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("filePath must be a string or a list of strings")
	}
	*p = many
	return nil
}
