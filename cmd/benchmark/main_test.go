package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadScenarios(t *testing.T) {
	input := "currentAge,retirementAge,interestRate,lifestyleType,expectedFutureValue\n" +
		"30,65,5,fancy,3408277.31\n" +
		"30,65,,simple,\n"

	scenarios, err := readScenarios(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	assert.Equal(t, 30, scenarios[0].CurrentAge)
	assert.Equal(t, "5", scenarios[0].InterestRate)
	require.NotNil(t, scenarios[0].Expected)
	assert.Equal(t, "3408277.31", scenarios[0].Expected.StringFixed(2))

	assert.Empty(t, scenarios[1].InterestRate)
	assert.Nil(t, scenarios[1].Expected)
}

func TestReadScenariosErrors(t *testing.T) {
	_, err := readScenarios(strings.NewReader("currentAge,lifestyleType\n30,fancy\n"))
	assert.ErrorContains(t, err, "retirementage")

	_, err = readScenarios(strings.NewReader("currentAge,retirementAge,lifestyleType\nthirty,65,fancy\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = readScenarios(strings.NewReader("currentAge,retirementAge,lifestyleType\n"))
	assert.Error(t, err)
}

func TestPercentile(t *testing.T) {
	latencies := []time.Duration{5, 1, 4, 2, 3}
	assert.Equal(t, time.Duration(1), percentile(latencies, 0))
	assert.Equal(t, time.Duration(3), percentile(latencies, 50))
	assert.Equal(t, time.Duration(5), percentile(latencies, 100))
	assert.Zero(t, percentile(nil, 50))
}

func TestRunBenchmark(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CalculateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LifestyleType == "unknown" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"futureValue":3408277.31}`))
	}))
	defer srv.Close()

	scenarios, err := readScenarios(strings.NewReader(
		"currentAge,retirementAge,lifestyleType,expectedFutureValue\n" +
			"30,65,fancy,3408277.31\n" +
			"30,65,simple,1.00\n" +
			"30,65,unknown,\n"))
	require.NoError(t, err)

	m := runBenchmark(scenarios, srv.URL, 6, 3, false)
	assert.EqualValues(t, 6, m.TotalProcessed)
	assert.EqualValues(t, 2, m.TotalMatched)
	assert.EqualValues(t, 2, m.TotalMismatch)
	assert.EqualValues(t, 2, m.TotalErrors)
	assert.EqualValues(t, 4, m.statuses[http.StatusOK])
	assert.EqualValues(t, 2, m.statuses[http.StatusNotFound])
}
