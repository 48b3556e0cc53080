package models

import "time"

// DifficultyLevel groups sound modules by how hard they are for English
// speakers.
type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)

// DifficultyLevels lists every level from easiest to hardest.
var DifficultyLevels = []DifficultyLevel{
	DifficultyBeginner,
	DifficultyIntermediate,
	DifficultyAdvanced,
}

// Valid reports whether d is a known level.
func (d DifficultyLevel) Valid() bool {
	return d.Rank() >= 0
}

// Rank orders levels from easiest (0) to hardest. Unknown levels return -1.
func (d DifficultyLevel) Rank() int {
	for i, level := range DifficultyLevels {
		if level == d {
			return i
		}
	}
	return -1
}

// Exercise is one practice word of a sound module.
type Exercise struct {
	Word              string `json:"word" yaml:"word"`
	IPA               string `json:"ipa" yaml:"ipa"`
	Sentence          string `json:"sentence" yaml:"sentence"`
	BenchmarkAudioURL string `json:"audio_url,omitempty" yaml:"-"`
}

// SoundModule groups exercises around one target phoneme.
type SoundModule struct {
	SoundID         string          `json:"sound_id" yaml:"sound_id"`
	PhonemeIPA      string          `json:"phoneme_ipa" yaml:"phoneme_ipa"`
	Name            string          `json:"name" yaml:"name"`
	Description     string          `json:"description" yaml:"description"`
	ArticulatoryTip string          `json:"articulatory_tip" yaml:"articulatory_tip"`
	DifficultyLevel DifficultyLevel `json:"difficulty_level" yaml:"difficulty_level"`
	Exercises       []Exercise      `json:"exercises" yaml:"exercises"`
	CreatedAt       time.Time       `json:"created_at" yaml:"-"`
}

// ModuleSummary is a module listing entry with the caller's progress.
type ModuleSummary struct {
	SoundID         string          `json:"sound_id"`
	PhonemeIPA      string          `json:"phoneme_ipa"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	ArticulatoryTip string          `json:"articulatory_tip"`
	DifficultyLevel DifficultyLevel `json:"difficulty_level"`
	ExercisesCount  int             `json:"exercises_count"`
	UserProgress    *MasteryRecord  `json:"user_progress"`
}

// Summary builds the listing entry for m.
func (m *SoundModule) Summary(progress *MasteryRecord) ModuleSummary {
	return ModuleSummary{
		SoundID:         m.SoundID,
		PhonemeIPA:      m.PhonemeIPA,
		Name:            m.Name,
		Description:     m.Description,
		ArticulatoryTip: m.ArticulatoryTip,
		DifficultyLevel: m.DifficultyLevel,
		ExercisesCount:  len(m.Exercises),
		UserProgress:    progress,
	}
}

// ModuleDetail is a full module with its exercises and the caller's progress.
type ModuleDetail struct {
	SoundModule
	ExercisesCount int            `json:"exercises_count"`
	UserProgress   *MasteryRecord `json:"user_progress"`
}

// ExerciseDetail is one exercise together with its module context.
type ExerciseDetail struct {
	SoundID           string   `json:"sound_id"`
	ExerciseIndex     int      `json:"exercise_index"`
	Word              string   `json:"word"`
	IPA               string   `json:"ipa"`
	Sentence          string   `json:"sentence"`
	PhonemeIPA        string   `json:"phoneme_ipa"`
	ArticulatoryTip   string   `json:"articulatory_tip"`
	BenchmarkAudioURL *string  `json:"benchmark_audio_url"`
	UserBestScore     *float64 `json:"user_best_score"`
}
