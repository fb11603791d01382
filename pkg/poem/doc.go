/*
Package poem assembles text from a markov.Model into poems that follow a
scheme of per-line syllable goals and end rhymes, such as the haiku scheme
"5a 7b 5a".

Each line is found by a bounded depth-first search over markov.ChoiceQueue
expansions: the most likely words are tried first, the first line within
tolerance is accepted, and when none is found the best scoring candidate
seen during the search is used instead. Syllables are approximated by token
count and rhymes by comparing the trailing sounds of a phonetic code, so the
results are playful rather than linguistically correct.
*/
package poem
