package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-logr/zapr"
	"github.com/thestormforge/optimize-driver/internal/driver"
	"github.com/thestormforge/optimize-driver/internal/executor"
	"github.com/thestormforge/optimize-driver/internal/routine"
	"github.com/thestormforge/optimize-driver/internal/sampler"
	"github.com/thestormforge/optimize-driver/internal/searchspace"
	"github.com/thestormforge/optimize-driver/internal/sink"
	"github.com/thestormforge/optimize-driver/internal/trial"
	"go.uber.org/zap"
)

// flax runs a small synthetic experiment end to end and checks the result is consistent
func main() {
	numTrials := flag.Int("num-trials", 20, "number of trials")
	workers := flag.Int("workers", 4, "number of concurrent trials")
	esMin := flag.Int("es-min", 5, "completed trials required before early stopping")
	verbose := flag.Bool("v", false, "write trial summaries to stdout")
	flag.Parse()

	rand.Seed(time.Now().UnixNano())

	zl, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	log := zapr.NewLogger(zl)

	// Parameter "a" has no baseline so the first trial is sampled
	space := &searchspace.SearchSpace{}
	if err := space.AddInteger("a", 1, 5); err != nil {
		panic(err)
	}
	if err := space.AddDouble("b", -1.0, 1.0); err != nil {
		panic(err)
	}

	s, err := sampler.New(sampler.RandomSearch, rand.Int63())
	if err != nil {
		panic(err)
	}

	substrate := executor.NewLocal(*workers)
	defer substrate.Close()

	var publisher sink.Publisher = sink.Discard
	if *verbose {
		publisher = sink.NewWriter(os.Stdout, sink.JSON)
	}

	d := &driver.Driver{
		Experiment: driver.Experiment{
			Name:              GetRandomName(0),
			SearchSpace:       space,
			Sampler:           s,
			Direction:         trial.Maximize,
			NumTrials:         *numTrials,
			HeartbeatInterval: 10 * time.Millisecond,
			EarlyStopInterval: 20 * time.Millisecond,
			EarlyStopMin:      *esMin,
		},
		Routine:   (&routine.Synthetic{Space: space, Steps: 20, StepInterval: 5 * time.Millisecond, Noise: 0.01}).Run,
		Substrate: substrate,
		Sink:      publisher,
		Log:       log,
	}

	result, err := d.Run(context.TODO())
	if err != nil {
		panic(err)
	}

	// Check the result
	if result.State != driver.Done {
		panic(fmt.Sprintf("Unexpected state '%s'", result.State))
	}
	if len(result.Trials) != *numTrials {
		panic(fmt.Sprintf("Trial count mismatch: was %d, expected %d", len(result.Trials), *numTrials))
	}
	for i, t := range result.Trials {
		if t.ID != i+1 {
			panic(fmt.Sprintf("Trial ID mismatch: was %d, expected %d", t.ID, i+1))
		}
		if !t.Status.IsTerminal() {
			panic(fmt.Sprintf("Trial %d is not terminal: %s", t.ID, t.Status))
		}
		if t.Status == trial.Failed {
			panic(fmt.Sprintf("Trial %d failed: %s", t.ID, t.Error))
		}
	}
	if result.Best == nil {
		panic("Missing best trial")
	}

	counts := result.Counts()
	fmt.Printf("%s: %d finished, %d early stopped, best trial %d = %.4f\n", result.Name,
		counts[trial.Finished], counts[trial.EarlyStopped], result.Best.ID, *result.Best.FinalMetric)
	fmt.Println("Much Success!")
}

var (
	left = [...]string{
		"agitated",
		"awesome",
		"bold",
		"cranky",
		"determined",
		"elated",
		"epic",
		"frosty",
		"happy",
		"jolly",
		"nostalgic",
		"quirky",
		"thirsty",
		"vigilant",
	}

	right = [...]string{
		"fenwick",
		"gustie",
		"hochadel",
		"idan",
		"joyce",
		"pacheco",
		"perol",
		"platt",
		"provo",
		"sich",
		"sutherland",
		"zhang",
	}
)

func GetRandomName(retry int) string {
	name := fmt.Sprintf("%s_%s", left[rand.Intn(len(left))], right[rand.Intn(len(right))])

	if retry > 0 {
		name = fmt.Sprintf("%s%d", name, rand.Intn(10))
	}
	return name
}
