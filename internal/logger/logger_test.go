// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const (
	textTraceString   = `^time="[0-9/:. ]{26}" severity=TRACE message=traceExample`
	textDebugString   = `^time="[0-9/:. ]{26}" severity=DEBUG message=debugExample`
	textInfoString    = `^time="[0-9/:. ]{26}" severity=INFO message=infoExample`
	textWarningString = `^time="[0-9/:. ]{26}" severity=WARNING message=warningExample`
	textErrorString   = `^time="[0-9/:. ]{26}" severity=ERROR message=errorExample`
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func redirectLogsToGivenBuffer(buf *bytes.Buffer, level string) {
	programLevel := new(slog.LevelVar)
	setLoggingLevel(level, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(buf, programLevel, ""))
}

func fetchLogOutputForSpecifiedSeverityLevel(level string, functions []func()) []string {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, level)

	var output []string
	for _, f := range functions {
		f()
		output = append(output, buf.String())
		buf.Reset()
	}
	return output
}

func getTestLoggingFunctions() []func() {
	return []func(){
		func() { Tracef("traceExample") },
		func() { Debugf("debugExample") },
		func() { Infof("infoExample") },
		func() { Warnf("warningExample") },
		func() { Errorf("errorExample") },
	}
}

func validateOutput(t *testing.T, expected []string, output []string) {
	for i := range output {
		if expected[i] == "" {
			assert.Equal(t, expected[i], output[i])
			continue
		}
		assert.Regexp(t, regexp.MustCompile(expected[i]), output[i])
	}
}

func (t *LoggerTest) TestLogLevelOFF() {
	expected := []string{"", "", "", "", ""}
	output := fetchLogOutputForSpecifiedSeverityLevel(OFF, getTestLoggingFunctions())
	validateOutput(t.T(), expected, output)
}

func (t *LoggerTest) TestLogLevelERROR() {
	expected := []string{"", "", "", "", textErrorString}
	output := fetchLogOutputForSpecifiedSeverityLevel(ERROR, getTestLoggingFunctions())
	validateOutput(t.T(), expected, output)
}

func (t *LoggerTest) TestLogLevelWARNING() {
	expected := []string{"", "", "", textWarningString, textErrorString}
	output := fetchLogOutputForSpecifiedSeverityLevel(WARNING, getTestLoggingFunctions())
	validateOutput(t.T(), expected, output)
}

func (t *LoggerTest) TestLogLevelINFO() {
	expected := []string{"", "", textInfoString, textWarningString, textErrorString}
	output := fetchLogOutputForSpecifiedSeverityLevel(INFO, getTestLoggingFunctions())
	validateOutput(t.T(), expected, output)
}

func (t *LoggerTest) TestLogLevelDEBUG() {
	expected := []string{"", textDebugString, textInfoString, textWarningString, textErrorString}
	output := fetchLogOutputForSpecifiedSeverityLevel(DEBUG, getTestLoggingFunctions())
	validateOutput(t.T(), expected, output)
}

func (t *LoggerTest) TestLogLevelTRACE() {
	expected := []string{textTraceString, textDebugString, textInfoString, textWarningString, textErrorString}
	output := fetchLogOutputForSpecifiedSeverityLevel(TRACE, getTestLoggingFunctions())
	validateOutput(t.T(), expected, output)
}

func (t *LoggerTest) TestUnknownSeverityDefaultsToInfo() {
	expected := []string{"", "", textInfoString, textWarningString, textErrorString}
	output := fetchLogOutputForSpecifiedSeverityLevel("BOGUS", getTestLoggingFunctions())
	validateOutput(t.T(), expected, output)
}
