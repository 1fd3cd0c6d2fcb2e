package entity

// Level - ступень прогресса, определяемая накопленным счетом
type Level struct {
	Name     string
	MinScore int64
}

// Levels упорядочены по возрастанию порога
var Levels = []Level{
	{Name: "Beginner", MinScore: 0},
	{Name: "Novice", MinScore: 500},
	{Name: "Apprentice", MinScore: 1500},
	{Name: "Adept", MinScore: 3000},
	{Name: "Skilled", MinScore: 5000},
	{Name: "Expert", MinScore: 8000},
	{Name: "Master", MinScore: 12000},
	{Name: "Grandmaster", MinScore: 17000},
	{Name: "Legend", MinScore: 23000},
	{Name: "Godlike", MinScore: 30000},
}

// LevelForScore возвращает наивысший уровень, порог которого не превышает score
func LevelForScore(score int64) string {
	name := Levels[0].Name
	for _, l := range Levels {
		if score < l.MinScore {
			break
		}
		name = l.Name
	}
	return name
}
