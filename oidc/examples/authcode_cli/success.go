package main

// successHTML is the page shown in the user's browser after a successful
// login; the interesting output goes to the terminal that launched the flow.
const successHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Signed in</title>
</head>
<body>
  <h1>Signed in</h1>
  <p>You may now close this window and return to the terminal.</p>
</body>
</html>
`
