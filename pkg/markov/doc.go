/*
Package markov provides a small toolkit for training and sampling first-order
word transition models in Go.

A Model records how often each token was observed directly after another.
It can be trained from any io.Reader through a Tokenizer, sampled one token at
a time with weighted random selection, walked to produce plain text with
Generate or GenerateStream, and enumerated without repetition through a
ChoiceQueue, which is what the poem assembler builds its search on.

Models serialize to JSON with Export and Import, and a Store keeps any number
of named models in a single SQLite database.

Randomness is always supplied by the caller as a *rand.Rand from math/rand/v2,
so sessions seeded with NewRand are reproducible and independent of each other.
*/
package markov
