package config

import (
	"maps"
	"slices"
	"time"
)

// Installation defaults. Every block left out of lair.yml gets these values,
// and every zero field of a present block is filled from them.

func defaultSums() *SumsPuzzle {
	return &SumsPuzzle{
		Common: Common{ID: 1},
		Pool: []int{
			5, 6, 7, 8, 9, 30, 32, 33, 34, 41, 42, 43, 44, 10, 11, 12, 28, 29, 31, 35,
			36, 37, 38, 39, 40, 13, 15, 16, 27, 14, 17, 24, 25, 26, 18, 20, 21, 23, 22,
		},
		RoundSizes:   []int{4, 7, 15},
		Cooldown:     3 * time.Second,
		TimeoutGrace: 5 * time.Second,
	}
}

func defaultSequences() *SequencesPuzzle {
	return &SequencesPuzzle{
		Common: Common{ID: 2},
		Sequences: map[int][]int{
			1:  {5, 0, 9, 6, 2},
			2:  {4, 3, 9, 0, 7},
			3:  {8, 1, 7, 2, 4},
			4:  {0, 4, 8, 1, 3},
			5:  {6, 7, 8, 4, 9},
			6:  {3, 5, 1, 9, 0},
			7:  {2, 6, 3, 7, 8},
			8:  {9, 2, 5, 7, 1},
			9:  {0, 8, 2, 5, 6},
			10: {1, 4, 6, 3, 5},
		},
		Alarm: defaultAlarm(),
	}
}

func defaultAlarm() *AlarmConfig {
	return &AlarmConfig{
		Remap:         map[int]int{0: 2, 1: 3, 2: 0, 3: 1, 4: 5, 5: 4, 6: 8, 7: 9, 8: 6, 9: 7},
		EnterAfterMin: 120 * time.Second,
		EnterAfterMax: 240 * time.Second,
		DurationMin:   60 * time.Second,
		DurationMax:   150 * time.Second,
		Transition:    5 * time.Second,
		EnterCue:      "/static/audios/effects/alarma.mp3",
		ExitCue:       "/static/audios/effects/backToNormal.mp3",
	}
}

func defaultQuiz() *QuizPuzzle {
	return &QuizPuzzle{
		Common:      Common{ID: 3},
		Players:     10,
		FirstPlayer: 0,
		Streak:      10,
		NextDelay:   3 * time.Second,
		RetryDelay:  3 * time.Second,
		Questions:   defaultQuestions(),
	}
}

func defaultQuestions() []Question {
	return []Question{
		{ID: "q1", Text: "Which planet is closest to the sun?", Answers: []string{"Venus", "Mercury", "Mars", "Earth"}, Correct: 1},
		{ID: "q2", Text: "How many sides does a hexagon have?", Answers: []string{"5", "6", "7", "8"}, Correct: 1},
		{ID: "q3", Text: "What is the chemical symbol for gold?", Answers: []string{"Ag", "Go", "Au", "Gd"}, Correct: 2},
		{ID: "q4", Text: "How many minutes are in three hours?", Answers: []string{"120", "150", "180", "200"}, Correct: 2},
		{ID: "q5", Text: "Which gas do plants absorb?", Answers: []string{"Oxygen", "Nitrogen", "Helium", "Carbon dioxide"}, Correct: 3},
		{ID: "q6", Text: "What is 12 x 12?", Answers: []string{"144", "124", "132", "156"}, Correct: 0},
		{ID: "q7", Text: "Which ocean is the largest?", Answers: []string{"Atlantic", "Indian", "Pacific", "Arctic"}, Correct: 2},
		{ID: "q8", Text: "How many legs does a spider have?", Answers: []string{"6", "8", "10", "12"}, Correct: 1},
		{ID: "q9", Text: "What is the boiling point of water at sea level in Celsius?", Answers: []string{"90", "95", "100", "110"}, Correct: 2},
		{ID: "q10", Text: "Which colour do blue and yellow make?", Answers: []string{"Green", "Purple", "Orange", "Brown"}, Correct: 0},
		{ID: "q11", Text: "How many continents are there?", Answers: []string{"5", "6", "7", "8"}, Correct: 2},
		{ID: "q12", Text: "Which is the smallest prime number?", Answers: []string{"0", "1", "2", "3"}, Correct: 2},
	}
}

func defaultMusic() *MusicPuzzle {
	return &MusicPuzzle{
		Common:         Common{ID: 4},
		LeadIn:         3 * time.Second,
		EvalDelay:      2 * time.Second,
		ResultHold:     10 * time.Second,
		CompletionHold: 5 * time.Second,
		Rounds: []MusicRound{
			{
				Sample:         "/static/audios/P4_F1/song.mp3",
				SampleDuration: 25 * time.Second,
				Order:          []int{5, 1, 8, 3},
				Tracks: map[int]string{
					0: "WrongSongs/wrong2.mp3", 1: "P4_F1/pista2.mp3", 2: "WrongSongs/wrong5.mp3",
					3: "P4_F1/pista4.mp3", 4: "WrongSongs/wrong1.mp3", 5: "P4_F1/pista1.mp3",
					6: "WrongSongs/wrong3.mp3", 7: "WrongSongs/wrong4.mp3", 8: "P4_F1/pista3.mp3",
					9: "WrongSongs/wrong6.mp3",
				},
			},
			{
				Sample:         "/static/audios/P4_F2/song.mp3",
				SampleDuration: 36 * time.Second,
				Order:          []int{6, 1, 0, 9, 8, 5, 2, 7},
				Tracks: map[int]string{
					0: "P4_F2/pista3.mp3", 1: "P4_F2/pista2.mp3", 2: "P4_F2/pista7.mp3",
					3: "WrongSongs/wrong8.mp3", 4: "WrongSongs/wrong7.mp3", 5: "P4_F2/pista6.mp3",
					6: "P4_F2/pista1.mp3", 7: "P4_F2/pista8.mp3", 8: "P4_F2/pista5.mp3",
					9: "P4_F2/pista4.mp3",
				},
			},
		},
	}
}

func defaultTiming() *TimingPuzzle {
	return &TimingPuzzle{
		Common:         Common{ID: 5},
		Players:        10,
		FirstPlayer:    1,
		Limits:         []float64{20, 30, 50},
		Objectives:     []float64{10, 30, 60},
		StartDelay:     10 * time.Second,
		EvalDelay:      2 * time.Second,
		ResultHold:     5 * time.Second,
		NextRoundDelay: 10 * time.Second,
		RetryDelay:     3 * time.Second,
		EndCommand:     "P5_End",
	}
}

func defaultPower() *PowerPuzzle {
	return &PowerPuzzle{
		Common:       Common{ID: 6},
		Duration:     60 * time.Second,
		Tick:         time.Second,
		ReportEvery:  10 * time.Second,
		RestartDelay: 10 * time.Second,
		Message:      "Box %d lost power, reloading system...",
	}
}

func defaultCodes() *CodesPuzzle {
	return &CodesPuzzle{
		Common: Common{ID: 7},
		Codes: map[int]string{
			0: "0424", 1: "4143", 2: "1234", 3: "1134", 4: "3333",
			5: "4310", 6: "1143", 7: "2220", 8: "1111", 9: "2234",
		},
	}
}

func defaultMemory() *MemoryPuzzle {
	return &MemoryPuzzle{
		Common:       Common{ID: 8},
		Symbols:      []string{"alpha", "beta", "delta", "epsilon", "gamma", "lambda", "mu", "omega", "pi", "sigma"},
		Colors:       []string{"yellow", "black", "white", "red", "blue", "green"},
		TokenNumbers: []int{18, 14, 17, 5, 20, 10, 13, 31, 35, 22},
		Rounds:       3,
		ClearHold:    5 * time.Second,
		NumbersHold:  3 * time.Second,
		FirstSetHold: 5 * time.Second,
		SetHold:      3 * time.Second,
		EvalDelay:    2 * time.Second,
		ResultHold:   5 * time.Second,
	}
}

func defaultTokens() *TokensPuzzle {
	return &TokensPuzzle{
		Common: Common{ID: 9},
		Solution: map[int]int{
			0: 22, 1: 18, 2: 14, 3: 17, 4: 5,
			5: 20, 6: 10, 7: 13, 8: 31, 9: 35,
		},
		Grace: 5 * time.Second,
	}
}

// Default returns a complete configuration with every puzzle enabled.
func Default() *LairConfig {
	c := &LairConfig{Version: "1.0"}
	// Validate cannot fail on the built-in tables.
	_ = c.Validate()
	return c
}

func (p *Puzzles) applyDefaults() {
	if p.Sums == nil {
		p.Sums = defaultSums()
	}
	d1 := defaultSums()
	fillInt(&p.Sums.ID, 1)
	fillInts(&p.Sums.Pool, d1.Pool)
	fillInts(&p.Sums.RoundSizes, d1.RoundSizes)
	fillDuration(&p.Sums.Cooldown, d1.Cooldown)
	fillDuration(&p.Sums.TimeoutGrace, d1.TimeoutGrace)

	if p.Sequences == nil {
		p.Sequences = defaultSequences()
	}
	fillInt(&p.Sequences.ID, 2)
	if len(p.Sequences.Sequences) == 0 {
		p.Sequences.Sequences = defaultSequences().Sequences
	}
	if a := p.Sequences.Alarm; a != nil {
		d := defaultAlarm()
		if len(a.Remap) == 0 {
			a.Remap = maps.Clone(d.Remap)
		}
		fillDuration(&a.EnterAfterMin, d.EnterAfterMin)
		fillDuration(&a.EnterAfterMax, max(d.EnterAfterMax, a.EnterAfterMin))
		fillDuration(&a.DurationMin, d.DurationMin)
		fillDuration(&a.DurationMax, max(d.DurationMax, a.DurationMin))
		fillDuration(&a.Transition, d.Transition)
		fillString(&a.EnterCue, d.EnterCue)
		fillString(&a.ExitCue, d.ExitCue)
	}

	if p.Quiz == nil {
		p.Quiz = defaultQuiz()
	}
	d3 := defaultQuiz()
	fillInt(&p.Quiz.ID, 3)
	fillInt(&p.Quiz.Players, d3.Players)
	fillInt(&p.Quiz.Streak, d3.Streak)
	fillDuration(&p.Quiz.NextDelay, d3.NextDelay)
	fillDuration(&p.Quiz.RetryDelay, d3.RetryDelay)
	if len(p.Quiz.Questions) == 0 {
		p.Quiz.Questions = d3.Questions
	}

	if p.Music == nil {
		p.Music = defaultMusic()
	}
	d4 := defaultMusic()
	fillInt(&p.Music.ID, 4)
	fillDuration(&p.Music.LeadIn, d4.LeadIn)
	fillDuration(&p.Music.EvalDelay, d4.EvalDelay)
	fillDuration(&p.Music.ResultHold, d4.ResultHold)
	fillDuration(&p.Music.CompletionHold, d4.CompletionHold)
	if len(p.Music.Rounds) == 0 {
		p.Music.Rounds = d4.Rounds
	}

	if p.Timing == nil {
		p.Timing = defaultTiming()
	}
	d5 := defaultTiming()
	fillInt(&p.Timing.ID, 5)
	fillInt(&p.Timing.Players, d5.Players)
	if len(p.Timing.Limits) == 0 {
		p.Timing.Limits = d5.Limits
		if len(p.Timing.Objectives) == 0 {
			p.Timing.Objectives = d5.Objectives
		}
	}
	fillDuration(&p.Timing.EvalDelay, d5.EvalDelay)
	fillDuration(&p.Timing.ResultHold, d5.ResultHold)
	fillDuration(&p.Timing.NextRoundDelay, d5.NextRoundDelay)
	fillDuration(&p.Timing.RetryDelay, d5.RetryDelay)
	fillString(&p.Timing.EndCommand, d5.EndCommand)

	if p.Power == nil {
		p.Power = defaultPower()
	}
	d6 := defaultPower()
	fillInt(&p.Power.ID, 6)
	fillDuration(&p.Power.Duration, d6.Duration)
	fillDuration(&p.Power.Tick, d6.Tick)
	fillDuration(&p.Power.ReportEvery, d6.ReportEvery)
	fillDuration(&p.Power.RestartDelay, d6.RestartDelay)
	fillString(&p.Power.Message, d6.Message)

	if p.Codes == nil {
		p.Codes = defaultCodes()
	}
	fillInt(&p.Codes.ID, 7)
	if len(p.Codes.Codes) == 0 {
		p.Codes.Codes = defaultCodes().Codes
	}

	if p.Memory == nil {
		p.Memory = defaultMemory()
	}
	d8 := defaultMemory()
	fillInt(&p.Memory.ID, 8)
	fillStrings(&p.Memory.Symbols, d8.Symbols)
	fillStrings(&p.Memory.Colors, d8.Colors)
	fillInts(&p.Memory.TokenNumbers, d8.TokenNumbers)
	fillInt(&p.Memory.Rounds, d8.Rounds)
	fillDuration(&p.Memory.ClearHold, d8.ClearHold)
	fillDuration(&p.Memory.NumbersHold, d8.NumbersHold)
	fillDuration(&p.Memory.FirstSetHold, d8.FirstSetHold)
	fillDuration(&p.Memory.SetHold, d8.SetHold)
	fillDuration(&p.Memory.EvalDelay, d8.EvalDelay)
	fillDuration(&p.Memory.ResultHold, d8.ResultHold)

	if p.Tokens == nil {
		p.Tokens = defaultTokens()
	}
	fillInt(&p.Tokens.ID, 9)
	if len(p.Tokens.Solution) == 0 {
		p.Tokens.Solution = defaultTokens().Solution
	}
	fillDuration(&p.Tokens.Grace, defaultTokens().Grace)
}

func fillDuration(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}

func fillInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func fillString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func fillInts(dst *[]int, def []int) {
	if len(*dst) == 0 {
		*dst = slices.Clone(def)
	}
}

func fillStrings(dst *[]string, def []string) {
	if len(*dst) == 0 {
		*dst = slices.Clone(def)
	}
}
