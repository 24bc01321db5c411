// Package student содержит модель студента и его академических данных:
// анкетные данные, историю оценок по периодам и ответы на опрос о привычках.
//
// Пакет только читает данные. Ввод оценок и опросов выполняется вне этой
// системы, поэтому Repository не содержит операций записи.
//
// # Основные типы
//
//   - Student - анкетные данные студента
//   - AcademicPeriod - учебный год с классом, секцией и оценками
//   - GradeEntry - одна оценка по критерию предмета за биместр
//   - AchievementLevel - уровень достижений A > B > C > D > Ungraded
//   - Survey - последний заполненный опрос студента
//
// Оценка может не иметь уровня (nil); такие записи учитываются как
// "без оценки" при подсчёте долей.
//
// # Репозитории
//
// Repository определяется здесь, реализация находится в
// infrastructure/persistence/postgres:
//
//	st, err := repo.GetStudent(ctx, 42)
//	if errors.Is(err, shared.ErrNotFound) { ... }
//	history, err := repo.GetAcademicHistory(ctx, st.ID)
//	survey, err := repo.GetLatestSurvey(ctx, st.ID) // nil, nil если опроса нет
package student
